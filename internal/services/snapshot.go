package services

import (
	"encoding/json"
	"net/http"
	"strings"

	"gorm.io/datatypes"

	"github.com/kylejeon/testflow/internal/models"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
)

// ErrCorruptSnapshot indicates a stored history snapshot could not be parsed.
// The restore is aborted and the record is left untouched.
var ErrCorruptSnapshot = apperrors.New("SNAPSHOT_CORRUPT", "History snapshot could not be parsed", http.StatusUnprocessableEntity)

// TestCaseSnapshot is the full value-set of a test case's ten tracked fields
// at one point in time. The shape is fixed: absent values decode to empty
// string / false, never to "unchanged", so a restore can rebuild the whole
// record from a single snapshot.
type TestCaseSnapshot struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Precondition   string `json:"precondition"`
	Priority       string `json:"priority"`
	Folder         string `json:"folder"`
	Tags           string `json:"tags"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
	Assignee       string `json:"assignee"`
	IsAutomated    bool   `json:"is_automated"`

	// Status is captured for audit display on status transitions but is not
	// one of the tracked fields: it is never diffed and never restored.
	Status string `json:"status,omitempty"`
}

// trackedFields lists the diffable fields in their canonical order.
var trackedFields = []string{
	"title",
	"description",
	"precondition",
	"priority",
	"folder",
	"tags",
	"steps",
	"expected_result",
	"assignee",
	"is_automated",
}

// SnapshotOf captures the current tracked field values of a test case.
func SnapshotOf(tc *models.TestCase) TestCaseSnapshot {
	if tc == nil {
		return TestCaseSnapshot{}
	}
	return TestCaseSnapshot{
		Title:          tc.Title,
		Description:    tc.Description,
		Precondition:   tc.Precondition,
		Priority:       tc.Priority,
		Folder:         tc.Folder,
		Tags:           tc.Tags,
		Steps:          tc.Steps,
		ExpectedResult: tc.ExpectedResult,
		Assignee:       tc.Assignee,
		IsAutomated:    tc.IsAutomated,
		Status:         tc.Status,
	}
}

// Encode serialises the snapshot for storage in a history row.
func (s TestCaseSnapshot) Encode() (datatypes.JSON, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(payload), nil
}

// DecodeSnapshot parses a stored snapshot, reporting ErrCorruptSnapshot for
// missing or malformed payloads.
func DecodeSnapshot(data datatypes.JSON) (TestCaseSnapshot, error) {
	if len(data) == 0 {
		return TestCaseSnapshot{}, ErrCorruptSnapshot
	}

	var snapshot TestCaseSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return TestCaseSnapshot{}, ErrCorruptSnapshot.WithInternal(err)
	}
	return snapshot, nil
}

// DiffSnapshots returns the names of tracked fields whose values differ,
// in canonical field order.
func DiffSnapshots(before, after TestCaseSnapshot) []string {
	var changed []string
	for _, field := range trackedFields {
		if before.field(field) != after.field(field) {
			changed = append(changed, field)
		}
	}
	return changed
}

// ChangedFieldList renders a changed-field set for storage: a comma-joined
// list, or the "no changes" sentinel when the save altered nothing. No-op
// saves are still logged deliberately; they capture forced saves.
func ChangedFieldList(fields []string) string {
	if len(fields) == 0 {
		return models.HistoryNoChanges
	}
	return strings.Join(fields, ",")
}

// field returns the string representation used for comparison.
func (s TestCaseSnapshot) field(name string) string {
	switch name {
	case "title":
		return s.Title
	case "description":
		return s.Description
	case "precondition":
		return s.Precondition
	case "priority":
		return s.Priority
	case "folder":
		return s.Folder
	case "tags":
		return s.Tags
	case "steps":
		return s.Steps
	case "expected_result":
		return s.ExpectedResult
	case "assignee":
		return s.Assignee
	case "is_automated":
		if s.IsAutomated {
			return "true"
		}
		return "false"
	}
	return ""
}

// applyTo writes the snapshot's tracked fields onto the test case.
// Status is deliberately left alone.
func (s TestCaseSnapshot) applyTo(tc *models.TestCase) {
	tc.Title = s.Title
	tc.Description = s.Description
	tc.Precondition = s.Precondition
	tc.Priority = s.Priority
	tc.Folder = s.Folder
	tc.Tags = s.Tags
	tc.Steps = s.Steps
	tc.ExpectedResult = s.ExpectedResult
	tc.Assignee = s.Assignee
	tc.IsAutomated = s.IsAutomated
}

// updatesMap renders the snapshot as a column update set covering every
// tracked field, so absent values overwrite rather than persist.
func (s TestCaseSnapshot) updatesMap() map[string]any {
	return map[string]any{
		"title":           s.Title,
		"description":     s.Description,
		"precondition":    s.Precondition,
		"priority":        s.Priority,
		"folder":          s.Folder,
		"tags":            s.Tags,
		"steps":           s.Steps,
		"expected_result": s.ExpectedResult,
		"assignee":        s.Assignee,
		"is_automated":    s.IsAutomated,
	}
}
