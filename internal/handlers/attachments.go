package handlers

import (
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/internal/storage"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/response"
)

const maxAttachmentBytes = 25 << 20 // 25 MiB

// AttachmentHandler serves test case file attachments.
type AttachmentHandler struct {
	cases   *services.TestCaseService
	members *services.MembershipService
	store   storage.Store
}

// NewAttachmentHandler constructs an AttachmentHandler.
func NewAttachmentHandler(cases *services.TestCaseService, members *services.MembershipService, store storage.Store) *AttachmentHandler {
	return &AttachmentHandler{cases: cases, members: members, store: store}
}

// Upload stores a multipart file and links it to the case; members and above.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, apperrors.NewBadRequest("a file field is required"))
		return
	}
	if fileHeader.Size > maxAttachmentBytes {
		writeError(c, apperrors.NewBadRequest("file exceeds the 25 MiB limit"))
		return
	}

	projectID := c.Param("projectId")
	caseID := c.Param("caseId")
	if _, err := h.cases.Get(c.Request.Context(), projectID, caseID); err != nil {
		writeError(c, err)
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		writeError(c, apperrors.Wrap(err, "failed to read upload"))
		return
	}
	defer src.Close()

	name := path.Base(fileHeader.Filename)
	key := fmt.Sprintf("testcases/%s/%s-%s", caseID, uuid.NewString(), name)

	size, err := h.store.Save(c.Request.Context(), key, src)
	if err != nil {
		writeError(c, apperrors.Wrap(err, "failed to store upload"))
		return
	}

	attachment := models.Attachment{
		Name: name,
		URL:  "/api/v1/attachments/" + key,
		Size: size,
	}
	testCase, err := h.cases.AddAttachment(c.Request.Context(), projectID, caseID, attachment)
	if err != nil {
		_ = h.store.Delete(c.Request.Context(), key)
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, testCase)
}

// Download streams a stored attachment. The key is the remainder of the path.
func (h *AttachmentHandler) Download(c *gin.Context) {
	key := c.Param("key")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	f, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		writeError(c, apperrors.ErrNotFound.WithInternal(err))
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", f, nil)
}

// Remove unlinks an attachment from a case by name; members and above.
// The stored file is kept so history snapshots referencing it stay valid.
func (h *AttachmentHandler) Remove(c *gin.Context) {
	if !requireProjectRole(c, h.members, models.RoleMember) {
		return
	}

	name := c.Query("name")
	if name == "" {
		writeError(c, apperrors.NewBadRequest("attachment name is required"))
		return
	}

	testCase, err := h.cases.RemoveAttachment(c.Request.Context(), c.Param("projectId"), c.Param("caseId"), name)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, testCase)
}
