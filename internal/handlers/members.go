package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/realtime"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/pkg/response"
)

// MemberHandler serves project membership management.
type MemberHandler struct {
	members *services.MembershipService
	hub     *realtime.Hub
}

// NewMemberHandler constructs a MemberHandler.
func NewMemberHandler(members *services.MembershipService, hub *realtime.Hub) *MemberHandler {
	return &MemberHandler{members: members, hub: hub}
}

// List returns a project's members.
func (h *MemberHandler) List(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	members, err := h.members.List(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// UpdateRole changes a member's role; admins and above only.
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleAdmin) {
		return
	}

	var req updateRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	projectID := c.Param("projectId")
	member, err := h.members.UpdateRole(c.Request.Context(), projectID, c.Param("userId"), req.Role)
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Publish(realtime.Event{Type: realtime.EventMemberChanged, ProjectID: projectID, Payload: member})
	response.Success(c, http.StatusOK, member)
}

// Remove deletes a membership; admins and above only.
func (h *MemberHandler) Remove(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleAdmin) {
		return
	}

	projectID := c.Param("projectId")
	userID := c.Param("userId")
	if err := h.members.Remove(c.Request.Context(), projectID, userID); err != nil {
		writeError(c, err)
		return
	}

	h.hub.Publish(realtime.Event{Type: realtime.EventMemberChanged, ProjectID: projectID, Payload: gin.H{"removed": userID}})
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
