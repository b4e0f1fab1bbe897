package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kylejeon/testflow/internal/models"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
)

// ErrMilestoneNotFound indicates the requested milestone does not exist.
var ErrMilestoneNotFound = apperrors.New("MILESTONE_NOT_FOUND", "Milestone not found", http.StatusNotFound)

// UpdateMilestoneInput carries mutable milestone fields. Nil means unchanged.
type UpdateMilestoneInput struct {
	Name        *string
	Description *string
	DueDate     *time.Time
	Status      *string
}

// MilestoneProgress aggregates run outcomes for one milestone.
type MilestoneProgress struct {
	Milestone *models.Milestone `json:"milestone"`
	RunCount  int64             `json:"run_count"`
	Passed    int64             `json:"passed"`
	Failed    int64             `json:"failed"`
	Total     int64             `json:"total"`
}

// MilestoneService manages milestones and their progress rollups.
type MilestoneService struct {
	db *gorm.DB
}

// NewMilestoneService constructs a MilestoneService.
func NewMilestoneService(db *gorm.DB) (*MilestoneService, error) {
	if db == nil {
		return nil, errors.New("milestone service: db is required")
	}
	return &MilestoneService{db: db}, nil
}

// Create adds a milestone to a project.
func (s *MilestoneService) Create(ctx context.Context, projectID, name, description string, dueDate *time.Time) (*models.Milestone, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("milestone name is required")
	}

	milestone := &models.Milestone{
		ProjectID:   projectID,
		Name:        name,
		Description: description,
		DueDate:     dueDate,
		Status:      models.MilestoneOpen,
	}
	if err := s.db.WithContext(ctx).Create(milestone).Error; err != nil {
		return nil, fmt.Errorf("milestone service: create milestone: %w", err)
	}
	return milestone, nil
}

// List returns a project's milestones, soonest due date first, undated last.
func (s *MilestoneService) List(ctx context.Context, projectID string) ([]models.Milestone, error) {
	ctx = ensureContext(ctx)

	var milestones []models.Milestone
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("due_date IS NULL, due_date ASC").
		Find(&milestones).Error
	if err != nil {
		return nil, fmt.Errorf("milestone service: list milestones: %w", err)
	}
	return milestones, nil
}

// Update applies partial changes to a milestone.
func (s *MilestoneService) Update(ctx context.Context, projectID, milestoneID string, input UpdateMilestoneInput) (*models.Milestone, error) {
	ctx = ensureContext(ctx)

	milestone, err := s.load(ctx, projectID, milestoneID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("milestone name is required")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.DueDate != nil {
		updates["due_date"] = *input.DueDate
	}
	if input.Status != nil {
		switch *input.Status {
		case models.MilestoneOpen, models.MilestoneCompleted:
			updates["status"] = *input.Status
		default:
			return nil, apperrors.NewBadRequest("unknown milestone status")
		}
	}
	if len(updates) == 0 {
		return milestone, nil
	}

	if err := s.db.WithContext(ctx).Model(milestone).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("milestone service: update milestone: %w", err)
	}
	return milestone, nil
}

// Delete removes a milestone. Runs tied to it keep running with the
// reference cleared at the storage layer.
func (s *MilestoneService) Delete(ctx context.Context, projectID, milestoneID string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", milestoneID, projectID).
		Delete(&models.Milestone{})
	if res.Error != nil {
		return fmt.Errorf("milestone service: delete milestone: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMilestoneNotFound
	}
	return nil
}

// Progress aggregates result counts across the milestone's runs.
func (s *MilestoneService) Progress(ctx context.Context, projectID, milestoneID string) (*MilestoneProgress, error) {
	ctx = ensureContext(ctx)

	milestone, err := s.load(ctx, projectID, milestoneID)
	if err != nil {
		return nil, err
	}

	var runIDs []string
	if err := s.db.WithContext(ctx).Model(&models.TestRun{}).
		Where("milestone_id = ?", milestoneID).
		Pluck("id", &runIDs).Error; err != nil {
		return nil, fmt.Errorf("milestone service: list runs: %w", err)
	}

	progress := &MilestoneProgress{Milestone: milestone, RunCount: int64(len(runIDs))}
	if len(runIDs) == 0 {
		return progress, nil
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := s.db.WithContext(ctx).Model(&models.TestResult{}).
		Select("status, COUNT(*) AS count").
		Where("run_id IN ?", runIDs).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("milestone service: aggregate results: %w", err)
	}

	for _, c := range counts {
		progress.Total += c.Count
		switch c.Status {
		case models.StatusPassed:
			progress.Passed = c.Count
		case models.StatusFailed:
			progress.Failed = c.Count
		}
	}
	return progress, nil
}

func (s *MilestoneService) load(ctx context.Context, projectID, milestoneID string) (*models.Milestone, error) {
	var milestone models.Milestone
	err := s.db.WithContext(ctx).
		First(&milestone, "id = ? AND project_id = ?", milestoneID, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMilestoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("milestone service: load milestone: %w", err)
	}
	return &milestone, nil
}
