package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/middleware"
	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/realtime"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/pkg/response"
)

// TestCaseHandler serves test case CRUD, history, and restore.
type TestCaseHandler struct {
	cases   *services.TestCaseService
	members *services.MembershipService
	hub     *realtime.Hub
}

// NewTestCaseHandler constructs a TestCaseHandler.
func NewTestCaseHandler(cases *services.TestCaseService, members *services.MembershipService, hub *realtime.Hub) *TestCaseHandler {
	return &TestCaseHandler{cases: cases, members: members, hub: hub}
}

type createTestCaseRequest struct {
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description"`
	Precondition   string `json:"precondition"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
	Priority       string `json:"priority"`
	Folder         string `json:"folder"`
	Tags           string `json:"tags"`
	Assignee       string `json:"assignee"`
	IsAutomated    bool   `json:"is_automated"`
}

// Create adds a test case; members and above.
func (h *TestCaseHandler) Create(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req createTestCaseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	projectID := c.Param("projectId")
	testCase, err := h.cases.Create(c.Request.Context(), projectID, middleware.UserID(c), services.CreateTestCaseInput{
		Title:          req.Title,
		Description:    req.Description,
		Precondition:   req.Precondition,
		Steps:          req.Steps,
		ExpectedResult: req.ExpectedResult,
		Priority:       req.Priority,
		Folder:         req.Folder,
		Tags:           req.Tags,
		Assignee:       req.Assignee,
		IsAutomated:    req.IsAutomated,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Publish(realtime.Event{Type: realtime.EventCaseChanged, ProjectID: projectID, Payload: testCase})
	response.Success(c, http.StatusCreated, testCase)
}

// List returns a project's test cases with optional filters.
func (h *TestCaseHandler) List(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	cases, err := h.cases.List(c.Request.Context(), c.Param("projectId"), services.TestCaseFilters{
		Folder:   c.Query("folder"),
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Search:   c.Query("search"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, cases)
}

// Get returns one test case.
func (h *TestCaseHandler) Get(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	testCase, err := h.cases.Get(c.Request.Context(), c.Param("projectId"), c.Param("caseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, testCase)
}

type updateTestCaseRequest struct {
	// Base is the client's last-known snapshot, used as the diff baseline.
	// When omitted the record's current state is used instead.
	Base *services.TestCaseSnapshot `json:"base"`

	Title          string `json:"title" validate:"required"`
	Description    string `json:"description"`
	Precondition   string `json:"precondition"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
	Priority       string `json:"priority"`
	Folder         string `json:"folder"`
	Tags           string `json:"tags"`
	Assignee       string `json:"assignee"`
	IsAutomated    bool   `json:"is_automated"`
}

// Update saves a full edit of a test case; members and above.
func (h *TestCaseHandler) Update(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req updateTestCaseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	projectID := c.Param("projectId")
	caseID := c.Param("caseId")

	var before services.TestCaseSnapshot
	if req.Base != nil {
		before = *req.Base
	} else {
		current, err := h.cases.Get(c.Request.Context(), projectID, caseID)
		if err != nil {
			writeError(c, err)
			return
		}
		before = services.SnapshotOf(current)
	}

	after := services.TestCaseSnapshot{
		Title:          req.Title,
		Description:    req.Description,
		Precondition:   req.Precondition,
		Steps:          req.Steps,
		ExpectedResult: req.ExpectedResult,
		Priority:       req.Priority,
		Folder:         req.Folder,
		Tags:           req.Tags,
		Assignee:       req.Assignee,
		IsAutomated:    req.IsAutomated,
	}

	testCase, err := h.cases.Update(c.Request.Context(), projectID, caseID, middleware.UserID(c), before, after)
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Publish(realtime.Event{Type: realtime.EventCaseChanged, ProjectID: testCase.ProjectID, Payload: testCase})
	response.Success(c, http.StatusOK, testCase)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus transitions a case's execution status; members and above.
func (h *TestCaseHandler) UpdateStatus(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req updateStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	testCase, err := h.cases.UpdateStatus(c.Request.Context(), c.Param("projectId"), c.Param("caseId"), middleware.UserID(c), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Publish(realtime.Event{Type: realtime.EventCaseChanged, ProjectID: testCase.ProjectID, Payload: testCase})
	response.Success(c, http.StatusOK, testCase)
}

// History returns a case's change log, newest first.
func (h *TestCaseHandler) History(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	entries, err := h.cases.History(c.Request.Context(), c.Param("projectId"), c.Param("caseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}

// Restore rolls a case back to the before-state of a history entry;
// members and above.
func (h *TestCaseHandler) Restore(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	testCase, err := h.cases.Restore(c.Request.Context(), c.Param("projectId"), c.Param("entryId"), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Publish(realtime.Event{Type: realtime.EventCaseChanged, ProjectID: testCase.ProjectID, Payload: testCase})
	response.Success(c, http.StatusOK, testCase)
}

type commentRequest struct {
	Body string `json:"body" validate:"required"`
}

// AddComment leaves a comment on a case; members and above.
func (h *TestCaseHandler) AddComment(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req commentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	comment, err := h.cases.AddComment(c.Request.Context(), c.Param("projectId"), c.Param("caseId"), middleware.UserID(c), req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, comment)
}

// ListComments returns a case's comments.
func (h *TestCaseHandler) ListComments(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	comments, err := h.cases.ListComments(c.Request.Context(), c.Param("projectId"), c.Param("caseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, comments)
}

// DeleteComment removes the caller's own comment.
func (h *TestCaseHandler) DeleteComment(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	if err := h.cases.DeleteComment(c.Request.Context(), c.Param("projectId"), c.Param("commentId"), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Delete removes a test case; members and above.
func (h *TestCaseHandler) Delete(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	projectID := c.Param("projectId")
	caseID := c.Param("caseId")
	if err := h.cases.Delete(c.Request.Context(), projectID, caseID, middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}

	h.hub.Publish(realtime.Event{Type: realtime.EventCaseDeleted, ProjectID: projectID, Payload: gin.H{"id": caseID}})
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
