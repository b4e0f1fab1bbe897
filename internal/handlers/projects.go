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

// ProjectHandler serves project CRUD.
type ProjectHandler struct {
	projects *services.ProjectService
	members  *services.MembershipService
}

// NewProjectHandler constructs a ProjectHandler.
func NewProjectHandler(projects *services.ProjectService, members *services.MembershipService) *ProjectHandler {
	return &ProjectHandler{projects: projects, members: members}
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// Create opens a project owned by the caller.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.projects.Create(c.Request.Context(), middleware.UserID(c), req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// List returns the caller's projects.
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, projects)
}

// Get returns one project the caller belongs to.
func (h *ProjectHandler) Get(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	project, err := h.projects.Get(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update applies partial changes; admins and above only.
func (h *ProjectHandler) Update(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleAdmin) {
		return
	}

	var req updateProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.projects.Update(c.Request.Context(), c.Param("projectId"), services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// Delete removes a project; owner only.
func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID := c.Param("projectId")

	project, err := h.projects.Get(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	if project.OwnerID != middleware.UserID(c) {
		writeError(c, apperrors.ErrForbidden)
		return
	}

	if err := h.projects.Delete(c.Request.Context(), projectID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
