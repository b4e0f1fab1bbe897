package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kylejeon/testflow/internal/auth"
	"github.com/kylejeon/testflow/internal/database"
	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/realtime"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/internal/storage"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "testflow"})
	require.NoError(t, err)
	sessionSvc, err := auth.NewSessionService(db, jwtSvc, auth.SessionConfig{})
	require.NoError(t, err)

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	projects, err := services.NewProjectService(db)
	require.NoError(t, err)
	members, err := services.NewMembershipService(db)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(db, nil,
		services.WithInviteBaseURL("http://localhost:8000"))
	require.NoError(t, err)
	cases, err := services.NewTestCaseService(db)
	require.NoError(t, err)
	folders, err := services.NewFolderService(db)
	require.NoError(t, err)
	milestones, err := services.NewMilestoneService(db)
	require.NoError(t, err)
	runs, err := services.NewRunService(db, cases)
	require.NoError(t, err)
	testSessions, err := services.NewTestSessionService(db)
	require.NoError(t, err)
	documents, err := services.NewDocumentService(db)
	require.NoError(t, err)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	router := NewRouter(Dependencies{
		DB:          db,
		JWT:         jwtSvc,
		Sessions:    sessionSvc,
		Users:       users,
		Projects:    projects,
		Members:     members,
		Invitations: invitations,
		Cases:       cases,
		Folders:     folders,
		Milestones:  milestones,
		Runs:        runs,
		TestSess:    testSessions,
		Documents:   documents,
		Store:       store,
		Hub:         realtime.NewHub(),
	})
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func registerAccount(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    email,
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var data struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	return data.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInvitationFlowOverHTTP(t *testing.T) {
	router, db := newTestRouter(t)

	ownerToken := registerAccount(t, router, "owner@example.com")

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/projects", ownerToken, gin.H{
		"name": "Web Regression",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var project models.Project
	require.NoError(t, json.Unmarshal(env.Data, &project))

	// Invite an address with no account: an invitation is issued.
	rec, env = doJSON(t, router, http.MethodPost,
		"/api/v1/projects/"+project.ID+"/invitations", ownerToken, gin.H{
			"email":     "tester@example.com",
			"role":      models.RoleMember,
			"full_name": "Terry Tester",
		})
	require.Equal(t, http.StatusCreated, rec.Code)

	var outcome struct {
		Added      bool `json:"added"`
		Invitation *struct {
			ID        string    `json:"id"`
			ExpiresAt time.Time `json:"expires_at"`
		} `json:"invitation"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	require.False(t, outcome.Added)
	require.NotNil(t, outcome.Invitation)

	// The token never leaves the server via the API envelope; read it from
	// the database the way the emailed link would carry it.
	var row models.ProjectInvitation
	require.NoError(t, db.Take(&row, "id = ?", outcome.Invitation.ID).Error)
	require.NotEmpty(t, row.Token)

	// The public verify endpoint resolves the token without auth.
	rec, env = doJSON(t, router, http.MethodGet,
		"/api/v1/invitations/verify?token="+row.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Email       string `json:"email"`
		ProjectName string `json:"project_name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, "tester@example.com", view.Email)
	require.Equal(t, "Web Regression", view.ProjectName)

	// The recipient registers and accepts.
	testerToken := registerAccount(t, router, "tester@example.com")
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/invitations/accept", testerToken, gin.H{
		"token": row.Token,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var accepted struct {
		AlreadyMember bool                  `json:"already_member"`
		Member        *models.ProjectMember `json:"member"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	require.False(t, accepted.AlreadyMember)
	require.Equal(t, models.RoleMember, accepted.Member.Role)

	// A double-clicked accept succeeds idempotently.
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/invitations/accept", testerToken, gin.H{
		"token": row.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	require.True(t, accepted.AlreadyMember)

	// The accepted member can now read the project.
	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/projects/"+project.ID, testerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInviteExistingAccountOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	ownerToken := registerAccount(t, router, "owner@example.com")
	registerAccount(t, router, "dev@example.com")

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/projects", ownerToken, gin.H{
		"name": "API Regression",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var project models.Project
	require.NoError(t, json.Unmarshal(env.Data, &project))

	rec, env = doJSON(t, router, http.MethodPost,
		"/api/v1/projects/"+project.ID+"/invitations", ownerToken, gin.H{
			"email": "dev@example.com",
			"role":  models.RoleViewer,
		})
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome struct {
		Added bool `json:"added"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	require.True(t, outcome.Added)
}

func TestCaseRoutesHideOtherProjectsCases(t *testing.T) {
	router, db := newTestRouter(t)

	aliceToken := registerAccount(t, router, "alice@example.com")
	bobToken := registerAccount(t, router, "bob@example.com")

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/projects", aliceToken, gin.H{"name": "Alpha"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var alpha models.Project
	require.NoError(t, json.Unmarshal(env.Data, &alpha))

	rec, env = doJSON(t, router, http.MethodPost,
		"/api/v1/projects/"+alpha.ID+"/testcases", aliceToken, gin.H{"title": "Alpha-only case"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var testCase models.TestCase
	require.NoError(t, json.Unmarshal(env.Data, &testCase))

	// Bob owns an unrelated project; his role there grants nothing in Alpha.
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/projects", bobToken, gin.H{"name": "Beta"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var beta models.Project
	require.NoError(t, json.Unmarshal(env.Data, &beta))

	rec, _ = doJSON(t, router, http.MethodGet,
		"/api/v1/projects/"+beta.ID+"/testcases/"+testCase.ID, bobToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete,
		"/api/v1/projects/"+beta.ID+"/testcases/"+testCase.ID, bobToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Alice's case survives untouched.
	var count int64
	require.NoError(t, db.Model(&models.TestCase{}).
		Where("id = ?", testCase.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	rec, env = doJSON(t, router, http.MethodGet,
		"/api/v1/projects/"+beta.ID+"/testcases/"+testCase.ID+"/history", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Empty(t, entries)

	rec, _ = doJSON(t, router, http.MethodGet,
		"/api/v1/projects/"+alpha.ID+"/testcases/"+testCase.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHistoryAndRestoreOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	token := registerAccount(t, router, "owner@example.com")

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/projects", token, gin.H{"name": "Suite"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var project models.Project
	require.NoError(t, json.Unmarshal(env.Data, &project))

	rec, env = doJSON(t, router, http.MethodPost,
		"/api/v1/projects/"+project.ID+"/testcases", token, gin.H{
			"title":    "Original title",
			"priority": models.PriorityLow,
		})
	require.Equal(t, http.StatusCreated, rec.Code)
	var testCase models.TestCase
	require.NoError(t, json.Unmarshal(env.Data, &testCase))

	rec, _ = doJSON(t, router, http.MethodPut,
		"/api/v1/projects/"+project.ID+"/testcases/"+testCase.ID, token, gin.H{
			"title":    "Edited title",
			"priority": models.PriorityLow,
		})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, router, http.MethodGet,
		"/api/v1/projects/"+project.ID+"/testcases/"+testCase.ID+"/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []struct {
		ID         string `json:"id"`
		Action     string `json:"action"`
		FieldNames string `json:"field_names"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	require.Equal(t, models.HistoryUpdated, entries[0].Action)
	require.Equal(t, "title", entries[0].FieldNames)

	rec, env = doJSON(t, router, http.MethodPost,
		"/api/v1/projects/"+project.ID+"/history/"+entries[0].ID+"/restore", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var restored models.TestCase
	require.NoError(t, json.Unmarshal(env.Data, &restored))
	require.Equal(t, "Original title", restored.Title)
}
