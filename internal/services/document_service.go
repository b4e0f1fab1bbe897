package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/kylejeon/testflow/internal/models"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
)

// ErrDocumentNotFound indicates the requested document does not exist.
var ErrDocumentNotFound = apperrors.New("DOCUMENT_NOT_FOUND", "Document not found", http.StatusNotFound)

// DocumentService manages project documents. Bodies are opaque to the
// server; they are stored and returned verbatim.
type DocumentService struct {
	db *gorm.DB
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(db *gorm.DB) (*DocumentService, error) {
	if db == nil {
		return nil, errors.New("document service: db is required")
	}
	return &DocumentService{db: db}, nil
}

// Create adds a document to a project.
func (s *DocumentService) Create(ctx context.Context, projectID, authorID, title, body string) (*models.ProjectDocument, error) {
	ctx = ensureContext(ctx)

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewBadRequest("document title is required")
	}

	doc := &models.ProjectDocument{
		ProjectID: projectID,
		Title:     title,
		Body:      body,
		AuthorID:  authorID,
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("document service: create document: %w", err)
	}
	return doc, nil
}

// Get loads a document.
func (s *DocumentService) Get(ctx context.Context, projectID, documentID string) (*models.ProjectDocument, error) {
	ctx = ensureContext(ctx)

	var doc models.ProjectDocument
	err := s.db.WithContext(ctx).
		Preload("Author").
		First(&doc, "id = ? AND project_id = ?", documentID, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("document service: load document: %w", err)
	}
	return &doc, nil
}

// List returns a project's documents by recency of change.
func (s *DocumentService) List(ctx context.Context, projectID string) ([]models.ProjectDocument, error) {
	ctx = ensureContext(ctx)

	var docs []models.ProjectDocument
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("updated_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("document service: list documents: %w", err)
	}
	return docs, nil
}

// Update replaces a document's title and body.
func (s *DocumentService) Update(ctx context.Context, projectID, documentID, title, body string) (*models.ProjectDocument, error) {
	ctx = ensureContext(ctx)

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewBadRequest("document title is required")
	}

	doc, err := s.Get(ctx, projectID, documentID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"title": title, "body": body}
	if err := s.db.WithContext(ctx).Model(doc).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("document service: update document: %w", err)
	}
	doc.Title = title
	doc.Body = body
	return doc, nil
}

// Delete removes a document.
func (s *DocumentService) Delete(ctx context.Context, projectID, documentID string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", documentID, projectID).
		Delete(&models.ProjectDocument{})
	if res.Error != nil {
		return fmt.Errorf("document service: delete document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
