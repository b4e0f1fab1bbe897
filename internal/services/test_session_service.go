package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kylejeon/testflow/internal/models"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
)

var (
	// ErrSessionNotFoundInProject indicates the requested exploratory session does not exist.
	ErrSessionNotFoundInProject = apperrors.New("SESSION_NOT_FOUND", "Test session not found", http.StatusNotFound)
	// ErrSessionEnded rejects log appends to a completed session.
	ErrSessionEnded = apperrors.New("SESSION_ENDED", "Test session has ended", http.StatusConflict)
)

// TestSessionService manages exploratory testing sessions and their
// append-only logs.
type TestSessionService struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewTestSessionService constructs a TestSessionService.
func NewTestSessionService(db *gorm.DB) (*TestSessionService, error) {
	if db == nil {
		return nil, errors.New("test session service: db is required")
	}
	return &TestSessionService{db: db, clock: time.Now}, nil
}

// Start opens a session.
func (s *TestSessionService) Start(ctx context.Context, projectID, userID, title, charter string) (*models.TestSession, error) {
	ctx = ensureContext(ctx)

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewBadRequest("session title is required")
	}

	session := &models.TestSession{
		ProjectID: projectID,
		Title:     title,
		Charter:   charter,
		Status:    models.SessionActive,
		StartedBy: userID,
		StartedAt: s.clock(),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("test session service: create session: %w", err)
	}
	return session, nil
}

// AppendLog adds an entry to an active session's log. Entries are immutable
// once written.
func (s *TestSessionService) AppendLog(ctx context.Context, projectID, sessionID, authorID, kind, body string) (*models.SessionLog, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewBadRequest("log body is required")
	}
	switch kind {
	case models.LogNote, models.LogBug, models.LogQuestion:
	case "":
		kind = models.LogNote
	default:
		return nil, apperrors.NewBadRequest("unknown log kind")
	}

	session, err := s.load(ctx, projectID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, ErrSessionEnded
	}

	entry := &models.SessionLog{
		SessionID: session.ID,
		AuthorID:  authorID,
		Kind:      kind,
		Body:      body,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("test session service: append log: %w", err)
	}
	return entry, nil
}

// End completes a session. Ending is idempotent.
func (s *TestSessionService) End(ctx context.Context, projectID, sessionID string) (*models.TestSession, error) {
	ctx = ensureContext(ctx)

	session, err := s.load(ctx, projectID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted {
		return session, nil
	}

	now := s.clock()
	updates := map[string]interface{}{
		"status":   models.SessionCompleted,
		"ended_at": now,
	}
	if err := s.db.WithContext(ctx).Model(session).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("test session service: end session: %w", err)
	}
	session.Status = models.SessionCompleted
	session.EndedAt = &now
	return session, nil
}

// Get loads a session with its log in write order.
func (s *TestSessionService) Get(ctx context.Context, projectID, sessionID string) (*models.TestSession, error) {
	ctx = ensureContext(ctx)

	var session models.TestSession
	err := s.db.WithContext(ctx).
		Preload("Logs", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&session, "id = ? AND project_id = ?", sessionID, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFoundInProject
	}
	if err != nil {
		return nil, fmt.Errorf("test session service: load session: %w", err)
	}
	return &session, nil
}

// List returns a project's sessions, newest first.
func (s *TestSessionService) List(ctx context.Context, projectID string) ([]models.TestSession, error) {
	ctx = ensureContext(ctx)

	var sessions []models.TestSession
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("test session service: list sessions: %w", err)
	}
	return sessions, nil
}

func (s *TestSessionService) load(ctx context.Context, projectID, sessionID string) (*models.TestSession, error) {
	var session models.TestSession
	err := s.db.WithContext(ctx).
		First(&session, "id = ? AND project_id = ?", sessionID, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFoundInProject
	}
	if err != nil {
		return nil, fmt.Errorf("test session service: load session: %w", err)
	}
	return &session, nil
}
