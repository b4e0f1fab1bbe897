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

// RunHandler serves test run management and result recording.
type RunHandler struct {
	runs    *services.RunService
	members *services.MembershipService
	hub     *realtime.Hub
}

// NewRunHandler constructs a RunHandler.
func NewRunHandler(runs *services.RunService, members *services.MembershipService, hub *realtime.Hub) *RunHandler {
	return &RunHandler{runs: runs, members: members, hub: hub}
}

type createRunRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	MilestoneID *string  `json:"milestone_id"`
	CaseIDs     []string `json:"case_ids" validate:"required,min=1"`
}

// Create opens a run; members and above.
func (h *RunHandler) Create(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req createRunRequest
	if !bindAndValidate(c, &req) {
		return
	}

	run, err := h.runs.Create(
		c.Request.Context(),
		c.Param("projectId"),
		middleware.UserID(c),
		req.Name,
		req.Description,
		req.MilestoneID,
		req.CaseIDs,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, run)
}

// List returns a project's runs.
func (h *RunHandler) List(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	runs, err := h.runs.List(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, runs)
}

// Get returns one run with its results.
func (h *RunHandler) Get(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	run, err := h.runs.Get(c.Request.Context(), c.Param("projectId"), c.Param("runId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, run)
}

type recordResultRequest struct {
	TestCaseID      string `json:"test_case_id" validate:"required"`
	Status          string `json:"status" validate:"required"`
	Notes           string `json:"notes"`
	DurationSeconds int    `json:"duration_seconds"`
}

// RecordResult stores one case outcome; members and above.
func (h *RunHandler) RecordResult(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req recordResultRequest
	if !bindAndValidate(c, &req) {
		return
	}

	projectID := c.Param("projectId")
	result, err := h.runs.RecordResult(
		c.Request.Context(),
		projectID,
		c.Param("runId"),
		req.TestCaseID,
		middleware.UserID(c),
		req.Status,
		req.Notes,
		req.DurationSeconds,
	)
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Publish(realtime.Event{Type: realtime.EventRunProgress, ProjectID: projectID, Payload: result})
	response.Success(c, http.StatusCreated, result)
}

// Close ends a run; members and above.
func (h *RunHandler) Close(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	run, err := h.runs.Close(c.Request.Context(), c.Param("projectId"), c.Param("runId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, run)
}

// Progress summarizes a run's completion.
func (h *RunHandler) Progress(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	progress, err := h.runs.Progress(c.Request.Context(), c.Param("projectId"), c.Param("runId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, progress)
}
