package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/realtime"
	"github.com/kylejeon/testflow/internal/services"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
)

// RealtimeHandler upgrades project event subscriptions to WebSocket.
type RealtimeHandler struct {
	hub     *realtime.Hub
	members *services.MembershipService
}

// NewRealtimeHandler constructs a RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub, members *services.MembershipService) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, members: members}
}

// Subscribe attaches the caller to a project's event stream.
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	err := h.hub.Subscribe(c.Writer, c.Request, c.Param("projectId"))
	if err != nil {
		// Upgrade failures have already written a response.
		_ = c.Error(apperrors.ErrInternalServer.WithInternal(err))
	}
}
