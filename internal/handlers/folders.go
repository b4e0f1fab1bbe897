package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/pkg/response"
)

// FolderHandler serves folder management.
type FolderHandler struct {
	folders *services.FolderService
	members *services.MembershipService
}

// NewFolderHandler constructs a FolderHandler.
func NewFolderHandler(folders *services.FolderService, members *services.MembershipService) *FolderHandler {
	return &FolderHandler{folders: folders, members: members}
}

type folderRequest struct {
	Name string `json:"name" validate:"required"`
}

// Create adds a folder; members and above.
func (h *FolderHandler) Create(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req folderRequest
	if !bindAndValidate(c, &req) {
		return
	}

	folder, err := h.folders.Create(c.Request.Context(), c.Param("projectId"), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, folder)
}

// List returns a project's folders.
func (h *FolderHandler) List(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	folders, err := h.folders.List(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, folders)
}

// Rename changes a folder's name; members and above.
func (h *FolderHandler) Rename(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req folderRequest
	if !bindAndValidate(c, &req) {
		return
	}

	folder, err := h.folders.Rename(c.Request.Context(), c.Param("projectId"), c.Param("folderId"), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, folder)
}

// Delete removes a folder, unfiling its cases; members and above.
func (h *FolderHandler) Delete(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	if err := h.folders.Delete(c.Request.Context(), c.Param("projectId"), c.Param("folderId")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
