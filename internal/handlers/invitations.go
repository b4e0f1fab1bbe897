package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/middleware"
	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/services"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/response"
)

// InvitationHandler serves the invitation lifecycle endpoints.
type InvitationHandler struct {
	invitations *services.InvitationService
	members     *services.MembershipService
	users       *services.UserService
}

// NewInvitationHandler constructs an InvitationHandler.
func NewInvitationHandler(invitations *services.InvitationService, members *services.MembershipService, users *services.UserService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, members: members, users: users}
}

type inviteRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required"`
	FullName string `json:"full_name"`
}

// Invite grants project access to an email; admins and above only.
// Known accounts become members immediately; unknown ones get an emailed link.
func (h *InvitationHandler) Invite(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleAdmin) {
		return
	}

	var req inviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	outcome, err := h.invitations.Invite(
		c.Request.Context(),
		c.Param("projectId"),
		middleware.UserID(c),
		req.Email,
		req.Role,
		req.FullName,
	)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if outcome.Added {
		status = http.StatusOK
	}
	response.Success(c, status, outcome)
}

// List returns a project's pending invitations; admins and above only.
func (h *InvitationHandler) List(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleAdmin) {
		return
	}

	invitations, err := h.invitations.ListPending(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

// Revoke cancels a pending invitation; admins and above only.
func (h *InvitationHandler) Revoke(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleAdmin) {
		return
	}

	err := h.invitations.Revoke(c.Request.Context(), c.Param("projectId"), c.Param("invitationId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// Verify resolves an invitation token for the signup page. No auth required:
// the recipient has no account yet.
func (h *InvitationHandler) Verify(c *gin.Context) {
	invitation, err := h.invitations.Verify(c.Request.Context(), c.Query("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	view := gin.H{
		"email":      invitation.Email,
		"full_name":  invitation.FullName,
		"role":       invitation.Role,
		"expires_at": invitation.ExpiresAt,
	}
	if invitation.Project != nil {
		view["project_name"] = invitation.Project.Name
	}
	response.Success(c, http.StatusOK, view)
}

type acceptRequest struct {
	Token string `json:"token" validate:"required"`
}

// Accept redeems an invitation for the authenticated caller. A repeat accept
// by a caller who is already a member succeeds idempotently.
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req acceptRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, apperrors.ErrUnauthorized.WithInternal(err))
		return
	}

	outcome, err := h.invitations.Accept(c.Request.Context(), req.Token, user)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if outcome.AlreadyMember {
		status = http.StatusOK
	}
	response.Success(c, status, outcome)
}
