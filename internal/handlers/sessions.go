package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/middleware"
	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/pkg/response"
)

// SessionHandler serves exploratory test sessions.
type SessionHandler struct {
	sessions *services.TestSessionService
	members  *services.MembershipService
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions *services.TestSessionService, members *services.MembershipService) *SessionHandler {
	return &SessionHandler{sessions: sessions, members: members}
}

type startSessionRequest struct {
	Title   string `json:"title" validate:"required"`
	Charter string `json:"charter"`
}

// Start opens a session; members and above.
func (h *SessionHandler) Start(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req startSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.sessions.Start(c.Request.Context(), c.Param("projectId"), middleware.UserID(c), req.Title, req.Charter)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, session)
}

// List returns a project's sessions.
func (h *SessionHandler) List(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	sessions, err := h.sessions.List(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// Get returns a session with its log.
func (h *SessionHandler) Get(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), c.Param("projectId"), c.Param("sessionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}

type appendLogRequest struct {
	Kind string `json:"kind"`
	Body string `json:"body" validate:"required"`
}

// AppendLog adds a log entry to an active session; members and above.
func (h *SessionHandler) AppendLog(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req appendLogRequest
	if !bindAndValidate(c, &req) {
		return
	}

	entry, err := h.sessions.AppendLog(
		c.Request.Context(),
		c.Param("projectId"),
		c.Param("sessionId"),
		middleware.UserID(c),
		req.Kind,
		req.Body,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, entry)
}

// End completes a session; members and above.
func (h *SessionHandler) End(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	session, err := h.sessions.End(c.Request.Context(), c.Param("projectId"), c.Param("sessionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}
