package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/pkg/response"
)

// MilestoneHandler serves milestone CRUD and progress.
type MilestoneHandler struct {
	milestones *services.MilestoneService
	members    *services.MembershipService
}

// NewMilestoneHandler constructs a MilestoneHandler.
func NewMilestoneHandler(milestones *services.MilestoneService, members *services.MembershipService) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones, members: members}
}

type createMilestoneRequest struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// Create adds a milestone; members and above.
func (h *MilestoneHandler) Create(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req createMilestoneRequest
	if !bindAndValidate(c, &req) {
		return
	}

	milestone, err := h.milestones.Create(c.Request.Context(), c.Param("projectId"), req.Name, req.Description, req.DueDate)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, milestone)
}

// List returns a project's milestones.
func (h *MilestoneHandler) List(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	milestones, err := h.milestones.List(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, milestones)
}

type updateMilestoneRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Status      *string    `json:"status"`
}

// Update applies partial changes; members and above.
func (h *MilestoneHandler) Update(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req updateMilestoneRequest
	if !bindAndValidate(c, &req) {
		return
	}

	milestone, err := h.milestones.Update(c.Request.Context(), c.Param("projectId"), c.Param("milestoneId"), services.UpdateMilestoneInput{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      req.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, milestone)
}

// Delete removes a milestone; admins and above.
func (h *MilestoneHandler) Delete(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleAdmin) {
		return
	}

	err := h.milestones.Delete(c.Request.Context(), c.Param("projectId"), c.Param("milestoneId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Progress aggregates run outcomes for a milestone.
func (h *MilestoneHandler) Progress(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	progress, err := h.milestones.Progress(c.Request.Context(), c.Param("projectId"), c.Param("milestoneId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, progress)
}
