package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/middleware"
	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/pkg/response"
)

// DocumentHandler serves project document CRUD.
type DocumentHandler struct {
	documents *services.DocumentService
	members   *services.MembershipService
}

// NewDocumentHandler constructs a DocumentHandler.
func NewDocumentHandler(documents *services.DocumentService, members *services.MembershipService) *DocumentHandler {
	return &DocumentHandler{documents: documents, members: members}
}

type documentRequest struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body"`
}

// Create adds a document; members and above.
func (h *DocumentHandler) Create(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req documentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), c.Param("projectId"), middleware.UserID(c), req.Title, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, doc)
}

// List returns a project's documents.
func (h *DocumentHandler) List(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	docs, err := h.documents.List(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, docs)
}

// Get returns one document.
func (h *DocumentHandler) Get(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleViewer) {
		return
	}

	doc, err := h.documents.Get(c.Request.Context(), c.Param("projectId"), c.Param("documentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, doc)
}

// Update replaces a document's title and body; members and above.
func (h *DocumentHandler) Update(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	var req documentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	doc, err := h.documents.Update(c.Request.Context(), c.Param("projectId"), c.Param("documentId"), req.Title, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, doc)
}

// Delete removes a document; members and above.
func (h *DocumentHandler) Delete(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	if err := h.documents.Delete(c.Request.Context(), c.Param("projectId"), c.Param("documentId")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
