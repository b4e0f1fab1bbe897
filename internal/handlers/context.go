package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kylejeon/testflow/internal/middleware"
	"github.com/kylejeon/testflow/internal/services"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/logger"
	"github.com/kylejeon/testflow/pkg/response"
)

// writeError logs server-side failures before rendering the error envelope.
func writeError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr.StatusCode >= 500 {
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	response.Error(c, appErr)
}

// requireProjectRole verifies the caller holds at least the given role in
// the project from the route. It writes the error response itself; callers
// bail out on false.
func requireProjectRole(c *gin.Context, members *services.MembershipService, minimum string) bool {
	projectID := c.Param("projectId")
	userID := middleware.UserID(c)

	ok, err := members.HasRole(c.Request.Context(), projectID, userID, minimum)
	if err != nil {
		writeError(c, err)
		return false
	}
	if !ok {
		writeError(c, apperrors.ErrForbidden)
		return false
	}
	return true
}
