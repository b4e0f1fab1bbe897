package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/auth"
	"github.com/kylejeon/testflow/internal/middleware"
	"github.com/kylejeon/testflow/internal/services"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/response"
)

// AuthHandler serves registration, login, and session management.
type AuthHandler struct {
	users    *services.UserService
	sessions *auth.SessionService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users *services.UserService, sessions *auth.SessionService) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         interface{} `json:"user,omitempty"`
}

// Register creates an account and opens a session for it.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(c, err)
		return
	}

	pair, _, err := h.sessions.CreateSession(user, sessionMetadata(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	})
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	pair, _, err := h.sessions.CreateSession(user, sessionMetadata(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	})
}

// Refresh rotates a refresh token into a fresh token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, _, err := h.sessions.RefreshSession(req.RefreshToken)
	if err != nil {
		writeError(c, mapSessionError(err))
		return
	}

	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout revokes the caller's session.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		writeError(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.sessions.RevokeSession(sessionID); err != nil {
		writeError(c, mapSessionError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

type updateProfileRequest struct {
	FullName *string `json:"full_name"`
	Avatar   *string `json:"avatar"`
}

// UpdateProfile changes the caller's display fields.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.UserID(c), req.FullName, req.Avatar)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword rotates the caller's password after verifying the current one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.users.ChangePassword(c.Request.Context(), middleware.UserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"changed": true})
}

func sessionMetadata(c *gin.Context) auth.SessionMetadata {
	return auth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

func mapSessionError(err error) error {
	switch {
	case errors.Is(err, auth.ErrSessionNotFound),
		errors.Is(err, auth.ErrSessionRevoked),
		errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrSessionInvalidToken):
		return apperrors.ErrUnauthorized.WithInternal(err)
	}
	return err
}
