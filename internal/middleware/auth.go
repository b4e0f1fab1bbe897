package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/auth"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/response"
)

// Context keys populated by RequireAuth.
const (
	CtxUserIDKey    = "auth.user_id"
	CtxUserEmailKey = "auth.user_email"
	CtxSessionIDKey = "auth.session_id"
)

// RequireAuth validates the bearer token and stores the caller's identity on
// the request context. Requests without a valid token are rejected.
func RequireAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			response.Error(c, apperrors.ErrUnauthorized.WithInternal(err))
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxUserEmailKey, claims.Email)
		c.Set(CtxSessionIDKey, claims.SessionID)
		c.Next()
	}
}

// UserID returns the authenticated user's id, or "" when unauthenticated.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

// UserEmail returns the authenticated user's email, or "" when unauthenticated.
func UserEmail(c *gin.Context) string {
	return c.GetString(CtxUserEmailKey)
}

// SessionID returns the auth session id carried in the token, if any.
func SessionID(c *gin.Context) string {
	return c.GetString(CtxSessionIDKey)
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		// WebSocket clients cannot set headers; allow the token in the query.
		return strings.TrimSpace(c.Query("token"))
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
