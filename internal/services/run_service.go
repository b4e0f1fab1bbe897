package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kylejeon/testflow/internal/models"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/metrics"
)

var (
	// ErrRunNotFound indicates the requested test run does not exist.
	ErrRunNotFound = apperrors.New("RUN_NOT_FOUND", "Test run not found", http.StatusNotFound)
	// ErrRunClosed rejects result recording against a closed run.
	ErrRunClosed = apperrors.New("RUN_CLOSED", "Test run is closed", http.StatusConflict)
	// ErrCaseNotInRun rejects a result for a case outside the run's selection.
	ErrCaseNotInRun = apperrors.New("CASE_NOT_IN_RUN", "Test case is not part of this run", http.StatusBadRequest)
)

// RunProgress summarizes a run's recorded outcomes against its selection.
type RunProgress struct {
	Run      *models.TestRun `json:"run"`
	Selected int             `json:"selected"`
	Recorded int64           `json:"recorded"`
	Passed   int64           `json:"passed"`
	Failed   int64           `json:"failed"`
}

// RunService manages test runs: fixed case selections executed against a
// build or milestone, producing per-case results that feed back into case
// statuses.
type RunService struct {
	db    *gorm.DB
	cases *TestCaseService
}

// NewRunService constructs a RunService. The test case service is required:
// recording a result also transitions the underlying case's status through
// the audited path.
func NewRunService(db *gorm.DB, cases *TestCaseService) (*RunService, error) {
	if db == nil {
		return nil, errors.New("run service: db is required")
	}
	if cases == nil {
		return nil, errors.New("run service: test case service is required")
	}
	return &RunService{db: db, cases: cases}, nil
}

// Create opens a run over the given case selection. Every selected case must
// exist in the project.
func (s *RunService) Create(ctx context.Context, projectID, actorID, name, description string, milestoneID *string, caseIDs []string) (*models.TestRun, error) {
	ctx = ensureContext(ctx)

	if name == "" {
		return nil, apperrors.NewBadRequest("run name is required")
	}
	if len(caseIDs) == 0 {
		return nil, apperrors.NewBadRequest("a run needs at least one test case")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.TestCase{}).
		Where("project_id = ? AND id IN ?", projectID, caseIDs).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("run service: validate selection: %w", err)
	}
	if count != int64(len(caseIDs)) {
		return nil, apperrors.NewBadRequest("selection contains unknown test cases")
	}

	if milestoneID != nil {
		var milestone models.Milestone
		err := s.db.WithContext(ctx).
			First(&milestone, "id = ? AND project_id = ?", *milestoneID, projectID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("run service: load milestone: %w", err)
		}
	}

	encoded, err := json.Marshal(caseIDs)
	if err != nil {
		return nil, fmt.Errorf("run service: encode selection: %w", err)
	}

	run := &models.TestRun{
		ProjectID:   projectID,
		Name:        name,
		Description: description,
		MilestoneID: milestoneID,
		CaseIDs:     encoded,
		Status:      models.RunActive,
		CreatedBy:   actorID,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("run service: create run: %w", err)
	}
	return run, nil
}

// Get loads a run with its results.
func (s *RunService) Get(ctx context.Context, projectID, runID string) (*models.TestRun, error) {
	ctx = ensureContext(ctx)

	var run models.TestRun
	err := s.db.WithContext(ctx).
		Preload("Results").
		First(&run, "id = ? AND project_id = ?", runID, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("run service: load run: %w", err)
	}
	return &run, nil
}

// List returns a project's runs, newest first.
func (s *RunService) List(ctx context.Context, projectID string) ([]models.TestRun, error) {
	ctx = ensureContext(ctx)

	var runs []models.TestRun
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("run service: list runs: %w", err)
	}
	return runs, nil
}

// RecordResult stores the outcome for one case in a run. Re-recording the
// same case overwrites the previous outcome. The case's own status follows
// the result, producing an audited status transition; the result row and
// the transition commit together, so a result never exists without its
// matching case history entry.
func (s *RunService) RecordResult(ctx context.Context, projectID, runID, caseID, actorID, status, notes string, durationSeconds int) (*models.TestResult, error) {
	ctx = ensureContext(ctx)

	if !models.ValidStatus(status) || status == models.StatusUntested {
		return nil, apperrors.NewBadRequest("unknown result status")
	}

	run, err := s.Get(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunActive {
		return nil, ErrRunClosed
	}

	selection, err := decodeCaseIDs(run.CaseIDs)
	if err != nil {
		return nil, fmt.Errorf("run service: decode selection: %w", err)
	}
	if !containsString(selection, caseID) {
		return nil, ErrCaseNotInRun
	}

	result := &models.TestResult{
		RunID:           runID,
		TestCaseID:      caseID,
		Status:          status,
		Notes:           notes,
		ActorID:         actorID,
		DurationSeconds: durationSeconds,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_id"}, {Name: "test_case_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":           result.Status,
				"notes":            result.Notes,
				"actor_id":         result.ActorID,
				"duration_seconds": result.DurationSeconds,
			}),
		}).Create(result).Error
		if err != nil {
			return fmt.Errorf("run service: record result: %w", err)
		}

		_, err = s.cases.updateStatusIn(tx, projectID, caseID, actorID, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.HistoryEntries.WithLabelValues(models.HistoryUpdated).Inc()

	return result, nil
}

// Close ends an active run. Closing is idempotent.
func (s *RunService) Close(ctx context.Context, projectID, runID string) (*models.TestRun, error) {
	ctx = ensureContext(ctx)

	run, err := s.Get(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status == models.RunClosed {
		return run, nil
	}

	if err := s.db.WithContext(ctx).Model(run).Update("status", models.RunClosed).Error; err != nil {
		return nil, fmt.Errorf("run service: close run: %w", err)
	}
	run.Status = models.RunClosed
	return run, nil
}

// Progress summarizes how far a run has progressed through its selection.
func (s *RunService) Progress(ctx context.Context, projectID, runID string) (*RunProgress, error) {
	ctx = ensureContext(ctx)

	run, err := s.Get(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}

	selection, err := decodeCaseIDs(run.CaseIDs)
	if err != nil {
		return nil, fmt.Errorf("run service: decode selection: %w", err)
	}

	progress := &RunProgress{Run: run, Selected: len(selection)}
	for _, result := range run.Results {
		progress.Recorded++
		switch result.Status {
		case models.StatusPassed:
			progress.Passed++
		case models.StatusFailed:
			progress.Failed++
		}
	}
	return progress, nil
}

func decodeCaseIDs(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
