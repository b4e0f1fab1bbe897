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

// ErrProjectNotFound indicates the requested project does not exist.
var ErrProjectNotFound = apperrors.New("PROJECT_NOT_FOUND", "Project not found", http.StatusNotFound)

// UpdateProjectInput carries mutable project fields. Nil means unchanged.
type UpdateProjectInput struct {
	Name        *string
	Description *string
}

// ProjectService manages projects and their owner membership.
type ProjectService struct {
	db *gorm.DB
}

// NewProjectService constructs a ProjectService.
func NewProjectService(db *gorm.DB) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("project service: db is required")
	}
	return &ProjectService{db: db}, nil
}

// Create persists a project and its owner membership atomically. The creator
// always holds the owner role.
func (s *ProjectService) Create(ctx context.Context, ownerID, name, description string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("project name is required")
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.NewBadRequest("owner id is required")
	}

	project := &models.Project{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		member := &models.ProjectMember{
			ProjectID: project.ID,
			UserID:    ownerID,
			Role:      models.RoleOwner,
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("project service: %w", err)
	}

	return project, nil
}

// Get loads a project by id.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project service: load project: %w", err)
	}
	return &project, nil
}

// ListForUser returns the projects the user is a member of, newest first.
func (s *ProjectService) ListForUser(ctx context.Context, userID string) ([]models.Project, error) {
	ctx = ensureContext(ctx)

	var projects []models.Project
	err := s.db.WithContext(ctx).
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID).
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("project service: list projects: %w", err)
	}
	return projects, nil
}

// Update applies partial changes to a project.
func (s *ProjectService) Update(ctx context.Context, projectID string, input UpdateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("project name is required")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if len(updates) == 0 {
		return project, nil
	}

	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("project service: update project: %w", err)
	}
	return project, nil
}

// Delete removes a project. Members, invitations, and project-scoped records
// cascade at the storage layer.
func (s *ProjectService) Delete(ctx context.Context, projectID string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).Delete(&models.Project{}, "id = ?", projectID)
	if res.Error != nil {
		return fmt.Errorf("project service: delete project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}
