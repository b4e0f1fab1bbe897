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

var (
	// ErrFolderNotFound indicates the requested folder does not exist.
	ErrFolderNotFound = apperrors.New("FOLDER_NOT_FOUND", "Folder not found", http.StatusNotFound)
	// ErrFolderExists indicates a folder with the same name already exists in the project.
	ErrFolderExists = apperrors.New("FOLDER_EXISTS", "A folder with this name already exists", http.StatusConflict)
)

// FolderService manages the folder labels test cases are grouped under.
type FolderService struct {
	db *gorm.DB
}

// NewFolderService constructs a FolderService.
func NewFolderService(db *gorm.DB) (*FolderService, error) {
	if db == nil {
		return nil, errors.New("folder service: db is required")
	}
	return &FolderService{db: db}, nil
}

// Create adds a folder. Folder names are unique within a project.
func (s *FolderService) Create(ctx context.Context, projectID, name string) (*models.Folder, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("folder name is required")
	}

	folder := &models.Folder{ProjectID: projectID, Name: name}
	if err := s.db.WithContext(ctx).Create(folder).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrFolderExists
		}
		return nil, fmt.Errorf("folder service: create folder: %w", err)
	}
	return folder, nil
}

// List returns a project's folders in name order.
func (s *FolderService) List(ctx context.Context, projectID string) ([]models.Folder, error) {
	ctx = ensureContext(ctx)

	var folders []models.Folder
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("name ASC").
		Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("folder service: list folders: %w", err)
	}
	return folders, nil
}

// Rename changes a folder's name and relabels the test cases filed under it,
// in one transaction.
func (s *FolderService) Rename(ctx context.Context, projectID, folderID, name string) (*models.Folder, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("folder name is required")
	}

	folder, err := s.load(ctx, projectID, folderID)
	if err != nil {
		return nil, err
	}

	oldName := folder.Name
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(folder).Update("name", name).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrFolderExists
			}
			return fmt.Errorf("rename folder: %w", err)
		}
		if err := tx.Model(&models.TestCase{}).
			Where("project_id = ? AND folder = ?", projectID, oldName).
			Update("folder", name).Error; err != nil {
			return fmt.Errorf("relabel test cases: %w", err)
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("folder service: %w", err)
	}

	folder.Name = name
	return folder, nil
}

// Delete removes a folder and clears the label from its test cases. The
// cases themselves survive, unfiled.
func (s *FolderService) Delete(ctx context.Context, projectID, folderID string) error {
	ctx = ensureContext(ctx)

	folder, err := s.load(ctx, projectID, folderID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TestCase{}).
			Where("project_id = ? AND folder = ?", projectID, folder.Name).
			Update("folder", "").Error; err != nil {
			return fmt.Errorf("unfile test cases: %w", err)
		}
		if err := tx.Delete(folder).Error; err != nil {
			return fmt.Errorf("delete folder: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("folder service: %w", err)
	}
	return nil
}

func (s *FolderService) load(ctx context.Context, projectID, folderID string) (*models.Folder, error) {
	var folder models.Folder
	err := s.db.WithContext(ctx).
		First(&folder, "id = ? AND project_id = ?", folderID, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("folder service: load folder: %w", err)
	}
	return &folder, nil
}
