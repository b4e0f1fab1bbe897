package handlers

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/validator"
)

// bindAndValidate decodes the JSON body into T and runs struct validation.
// On failure it writes the error response and returns false.
func bindAndValidate[T any](c *gin.Context, out *T) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		writeError(c, apperrors.NewBadRequest("invalid request body"))
		return false
	}
	if err := validator.ValidateStruct(out); err != nil {
		writeError(c, apperrors.NewBadRequest(err.Error()))
		return false
	}
	return true
}
