package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/kylejeon/testflow/internal/models"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/metrics"
)

var (
	// ErrTestCaseNotFound indicates the requested test case does not exist
	// in the given project.
	ErrTestCaseNotFound = apperrors.New("TEST_CASE_NOT_FOUND", "Test case not found", http.StatusNotFound)
	// ErrHistoryEntryNotFound indicates the requested history entry does not
	// exist in the given project.
	ErrHistoryEntryNotFound = apperrors.New("HISTORY_ENTRY_NOT_FOUND", "History entry not found", http.StatusNotFound)
	// ErrNotRestorable signals a restore was attempted from an entry kind that
	// carries no usable before-state (created) or no longer has a target (deleted).
	ErrNotRestorable = apperrors.New("HISTORY_NOT_RESTORABLE", "This history entry cannot be restored from", http.StatusBadRequest)
)

// CreateTestCaseInput captures the fields of a new test case.
type CreateTestCaseInput struct {
	Title          string
	Description    string
	Precondition   string
	Steps          string
	ExpectedResult string
	Priority       string
	Folder         string
	Tags           string
	Assignee       string
	IsAutomated    bool
}

// TestCaseFilters narrows List results.
type TestCaseFilters struct {
	Folder   string
	Status   string
	Priority string
	Search   string
}

// HistoryEntryView is a history row annotated with the acting identity.
type HistoryEntryView struct {
	models.TestCaseHistory
	ActorName  string `json:"actor_name"`
	ActorEmail string `json:"actor_email"`
}

// TestCaseService mutates test cases while maintaining a complete,
// attributable, revertible change history. Every mutation writes its
// history row in the same transaction as the record write; a crash can
// never lose history for a committed change. All lookups are scoped to
// the owning project: a case id from one project is invisible through
// another project's calls.
type TestCaseService struct {
	db *gorm.DB
}

// NewTestCaseService constructs a TestCaseService.
func NewTestCaseService(db *gorm.DB) (*TestCaseService, error) {
	if db == nil {
		return nil, errors.New("test case service: db is required")
	}
	return &TestCaseService{db: db}, nil
}

// Create persists a new test case and its "created" history entry.
// The title is required; nothing is written when validation fails.
func (s *TestCaseService) Create(ctx context.Context, projectID, actorID string, input CreateTestCaseInput) (*models.TestCase, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("test case title is required")
	}
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(actorID) == "" {
		return nil, apperrors.NewBadRequest("project id and actor id are required")
	}

	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, apperrors.NewBadRequest("unknown priority")
	}

	testCase := &models.TestCase{
		ProjectID:      projectID,
		Title:          title,
		Description:    input.Description,
		Precondition:   input.Precondition,
		Steps:          input.Steps,
		ExpectedResult: input.ExpectedResult,
		Priority:       priority,
		Folder:         strings.TrimSpace(input.Folder),
		Tags:           strings.TrimSpace(input.Tags),
		Assignee:       strings.TrimSpace(input.Assignee),
		IsAutomated:    input.IsAutomated,
		Status:         models.StatusUntested,
		CreatedBy:      actorID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(testCase).Error; err != nil {
			return fmt.Errorf("create test case: %w", err)
		}

		after, err := SnapshotOf(testCase).Encode()
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}

		entry := &models.TestCaseHistory{
			ProjectID:  testCase.ProjectID,
			TestCaseID: testCase.ID,
			ActorID:    actorID,
			Action:     models.HistoryCreated,
			After:      after,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("test case service: %w", err)
	}

	metrics.HistoryEntries.WithLabelValues(models.HistoryCreated).Inc()

	return testCase, nil
}

// Update applies a new tracked-field set to a test case and logs the change.
// The caller supplies its last-known snapshot as the diff baseline; the store
// does not re-read authoritative state before diffing, so the caller is
// responsible for operating on the freshest snapshot it holds. A save that
// changes nothing is still logged with the "no changes" sentinel.
// Returns the merged record so the caller refreshes its view without a
// second read.
func (s *TestCaseService) Update(ctx context.Context, projectID, caseID, actorID string, before, after TestCaseSnapshot) (*models.TestCase, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(after.Title) == "" {
		return nil, apperrors.NewBadRequest("test case title is required")
	}
	if after.Priority != "" && !models.ValidPriority(after.Priority) {
		return nil, apperrors.NewBadRequest("unknown priority")
	}

	testCase, err := s.load(s.db.WithContext(ctx), projectID, caseID)
	if err != nil {
		return nil, err
	}

	changed := DiffSnapshots(before, after)

	before.Status = testCase.Status
	after.Status = testCase.Status

	if err := s.writeRevision(ctx, testCase, actorID, models.HistoryUpdated, ChangedFieldList(changed), before, after); err != nil {
		return nil, err
	}

	metrics.HistoryEntries.WithLabelValues(models.HistoryUpdated).Inc()

	return testCase, nil
}

// UpdateStatus transitions a test case's execution status. It follows the
// same contract as Update but diffs only the status field.
func (s *TestCaseService) UpdateStatus(ctx context.Context, projectID, caseID, actorID, status string) (*models.TestCase, error) {
	ctx = ensureContext(ctx)

	var testCase *models.TestCase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		testCase, err = s.updateStatusIn(tx, projectID, caseID, actorID, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.HistoryEntries.WithLabelValues(models.HistoryUpdated).Inc()

	return testCase, nil
}

// updateStatusIn performs the status transition and its history write inside
// the caller's transaction, so callers can commit it together with their own
// writes. The returned errors are already shaped for the API surface.
func (s *TestCaseService) updateStatusIn(tx *gorm.DB, projectID, caseID, actorID, status string) (*models.TestCase, error) {
	if !models.ValidStatus(status) {
		return nil, apperrors.NewBadRequest("unknown status")
	}

	testCase, err := s.load(tx, projectID, caseID)
	if err != nil {
		return nil, err
	}

	before := SnapshotOf(testCase)
	after := before
	after.Status = status

	beforeJSON, err := before.Encode()
	if err != nil {
		return nil, fmt.Errorf("test case service: encode snapshot: %w", err)
	}
	afterJSON, err := after.Encode()
	if err != nil {
		return nil, fmt.Errorf("test case service: encode snapshot: %w", err)
	}

	if err := tx.Model(testCase).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("test case service: update status: %w", err)
	}

	entry := &models.TestCaseHistory{
		ProjectID:  testCase.ProjectID,
		TestCaseID: testCase.ID,
		ActorID:    actorID,
		Action:     models.HistoryUpdated,
		FieldNames: "status",
		Before:     beforeJSON,
		After:      afterJSON,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("test case service: create history entry: %w", err)
	}

	testCase.Status = status
	return testCase, nil
}

// Restore writes the before-snapshot of a history entry back onto the record.
// Only updated and restored entries are valid sources: both carry complete
// before-snapshots. The restore itself is logged as a "restored" entry whose
// before-snapshot is the record's state immediately prior to the restore, so
// restores chain indefinitely.
func (s *TestCaseService) Restore(ctx context.Context, projectID, entryID, actorID string) (*models.TestCase, error) {
	ctx = ensureContext(ctx)

	var entry models.TestCaseHistory
	err := s.db.WithContext(ctx).
		First(&entry, "id = ? AND project_id = ?", entryID, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHistoryEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("test case service: load history entry: %w", err)
	}

	if entry.Action != models.HistoryUpdated && entry.Action != models.HistoryRestored {
		return nil, ErrNotRestorable
	}

	restored, err := DecodeSnapshot(entry.Before)
	if err != nil {
		return nil, err
	}

	testCase, err := s.load(s.db.WithContext(ctx), projectID, entry.TestCaseID)
	if err != nil {
		return nil, err
	}

	current := SnapshotOf(testCase)
	restored.Status = testCase.Status

	changed := DiffSnapshots(current, restored)

	if err := s.writeRevision(ctx, testCase, actorID, models.HistoryRestored, ChangedFieldList(changed), current, restored); err != nil {
		return nil, err
	}

	metrics.HistoryEntries.WithLabelValues(models.HistoryRestored).Inc()

	return testCase, nil
}

// Delete removes a test case, first logging a terminal "deleted" entry so
// the case's lineage ends with an attributable event. History rows are kept.
func (s *TestCaseService) Delete(ctx context.Context, projectID, caseID, actorID string) error {
	ctx = ensureContext(ctx)

	testCase, err := s.load(s.db.WithContext(ctx), projectID, caseID)
	if err != nil {
		return err
	}

	before, err := SnapshotOf(testCase).Encode()
	if err != nil {
		return fmt.Errorf("test case service: encode snapshot: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &models.TestCaseHistory{
			ProjectID:  testCase.ProjectID,
			TestCaseID: testCase.ID,
			ActorID:    actorID,
			Action:     models.HistoryDeleted,
			Before:     before,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		if err := tx.Delete(testCase).Error; err != nil {
			return fmt.Errorf("delete test case: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("test case service: %w", err)
	}

	metrics.HistoryEntries.WithLabelValues(models.HistoryDeleted).Inc()

	return nil
}

// Get loads a single test case within a project.
func (s *TestCaseService) Get(ctx context.Context, projectID, caseID string) (*models.TestCase, error) {
	ctx = ensureContext(ctx)
	return s.load(s.db.WithContext(ctx), projectID, caseID)
}

// List returns a project's test cases, newest first, with optional filters.
func (s *TestCaseService) List(ctx context.Context, projectID string, filters TestCaseFilters) ([]models.TestCase, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC")

	if filters.Folder != "" {
		query = query.Where("folder = ?", filters.Folder)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Priority != "" {
		query = query.Where("priority = ?", filters.Priority)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}

	var cases []models.TestCase
	if err := query.Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("test case service: list cases: %w", err)
	}

	return cases, nil
}

// History returns a case's history entries, most recent first, with actor
// identities resolved through one batched lookup rather than per-row reads.
// Entries remain readable after the case itself is deleted.
func (s *TestCaseService) History(ctx context.Context, projectID, caseID string) ([]HistoryEntryView, error) {
	ctx = ensureContext(ctx)

	var entries []models.TestCaseHistory
	if err := s.db.WithContext(ctx).
		Where("test_case_id = ? AND project_id = ?", caseID, projectID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("test case service: list history: %w", err)
	}

	actorIDs := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.ActorID]; ok {
			continue
		}
		seen[entry.ActorID] = struct{}{}
		actorIDs = append(actorIDs, entry.ActorID)
	}

	actors := make(map[string]models.User, len(actorIDs))
	if len(actorIDs) > 0 {
		var users []models.User
		if err := s.db.WithContext(ctx).Where("id IN ?", actorIDs).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("test case service: resolve actors: %w", err)
		}
		for _, user := range users {
			actors[user.ID] = user
		}
	}

	views := make([]HistoryEntryView, 0, len(entries))
	for _, entry := range entries {
		view := HistoryEntryView{TestCaseHistory: entry}
		if actor, ok := actors[entry.ActorID]; ok {
			view.ActorName = actor.FullName
			view.ActorEmail = actor.Email
		}
		views = append(views, view)
	}

	return views, nil
}

// AddAttachment appends an attachment reference to a test case. Attachments
// are not tracked fields and do not produce history entries.
func (s *TestCaseService) AddAttachment(ctx context.Context, projectID, caseID string, attachment models.Attachment) (*models.TestCase, error) {
	ctx = ensureContext(ctx)

	testCase, err := s.load(s.db.WithContext(ctx), projectID, caseID)
	if err != nil {
		return nil, err
	}

	attachments, err := decodeAttachments(testCase.Attachments)
	if err != nil {
		return nil, fmt.Errorf("test case service: decode attachments: %w", err)
	}
	attachments = append(attachments, attachment)

	encoded, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("test case service: encode attachments: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(testCase).Update("attachments", encoded).Error; err != nil {
		return nil, fmt.Errorf("test case service: update attachments: %w", err)
	}

	testCase.Attachments = encoded
	return testCase, nil
}

// RemoveAttachment deletes an attachment reference by name.
func (s *TestCaseService) RemoveAttachment(ctx context.Context, projectID, caseID, name string) (*models.TestCase, error) {
	ctx = ensureContext(ctx)

	testCase, err := s.load(s.db.WithContext(ctx), projectID, caseID)
	if err != nil {
		return nil, err
	}

	attachments, err := decodeAttachments(testCase.Attachments)
	if err != nil {
		return nil, fmt.Errorf("test case service: decode attachments: %w", err)
	}

	kept := attachments[:0]
	for _, attachment := range attachments {
		if attachment.Name != name {
			kept = append(kept, attachment)
		}
	}

	encoded, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("test case service: encode attachments: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(testCase).Update("attachments", encoded).Error; err != nil {
		return nil, fmt.Errorf("test case service: update attachments: %w", err)
	}

	testCase.Attachments = encoded
	return testCase, nil
}

// AddComment leaves a comment on a test case. Comments sit outside the
// tracked field set and produce no history entries.
func (s *TestCaseService) AddComment(ctx context.Context, projectID, caseID, authorID, body string) (*models.TestCaseComment, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewBadRequest("comment body is required")
	}

	if _, err := s.load(s.db.WithContext(ctx), projectID, caseID); err != nil {
		return nil, err
	}

	comment := &models.TestCaseComment{
		TestCaseID: caseID,
		AuthorID:   authorID,
		Body:       body,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("test case service: create comment: %w", err)
	}
	return comment, nil
}

// ListComments returns a case's comments in write order with authors preloaded.
func (s *TestCaseService) ListComments(ctx context.Context, projectID, caseID string) ([]models.TestCaseComment, error) {
	ctx = ensureContext(ctx)

	if _, err := s.load(s.db.WithContext(ctx), projectID, caseID); err != nil {
		return nil, err
	}

	var comments []models.TestCaseComment
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("test_case_id = ?", caseID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("test case service: list comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment. Only its author may delete it, and only
// through the project that owns the commented case.
func (s *TestCaseService) DeleteComment(ctx context.Context, projectID, commentID, actorID string) error {
	ctx = ensureContext(ctx)

	var comment models.TestCaseComment
	err := s.db.WithContext(ctx).First(&comment, "id = ?", commentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("test case service: load comment: %w", err)
	}

	if _, err := s.load(s.db.WithContext(ctx), projectID, comment.TestCaseID); err != nil {
		if errors.Is(err, ErrTestCaseNotFound) {
			return apperrors.ErrNotFound
		}
		return err
	}
	if comment.AuthorID != actorID {
		return apperrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(&comment).Error; err != nil {
		return fmt.Errorf("test case service: delete comment: %w", err)
	}
	return nil
}

// load resolves a case by id within a project. A case belonging to a
// different project is indistinguishable from a missing one.
func (s *TestCaseService) load(db *gorm.DB, projectID, caseID string) (*models.TestCase, error) {
	var testCase models.TestCase
	err := db.First(&testCase, "id = ? AND project_id = ?", caseID, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("test case service: load case: %w", err)
	}
	return &testCase, nil
}

// writeRevision commits new field values and their history entry atomically,
// then mutates testCase in place to the post-write state.
func (s *TestCaseService) writeRevision(ctx context.Context, testCase *models.TestCase, actorID, action, fieldNames string, before, after TestCaseSnapshot) error {
	beforeJSON, err := before.Encode()
	if err != nil {
		return fmt.Errorf("test case service: encode snapshot: %w", err)
	}
	afterJSON, err := after.Encode()
	if err != nil {
		return fmt.Errorf("test case service: encode snapshot: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(testCase).Updates(after.updatesMap()).Error; err != nil {
			return fmt.Errorf("update test case: %w", err)
		}

		entry := &models.TestCaseHistory{
			ProjectID:  testCase.ProjectID,
			TestCaseID: testCase.ID,
			ActorID:    actorID,
			Action:     action,
			FieldNames: fieldNames,
			Before:     beforeJSON,
			After:      afterJSON,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("test case service: %w", err)
	}

	after.applyTo(testCase)
	return nil
}

func decodeAttachments(data []byte) ([]models.Attachment, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var attachments []models.Attachment
	if err := json.Unmarshal(data, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}
