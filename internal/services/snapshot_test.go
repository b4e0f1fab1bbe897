package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/kylejeon/testflow/internal/models"
)

func TestDiffSnapshotsCanonicalOrder(t *testing.T) {
	before := TestCaseSnapshot{
		Title:    "Login works",
		Priority: models.PriorityLow,
		Steps:    "1. Log in",
	}
	after := before
	after.Steps = "1. Log in\n2. Verify dashboard"
	after.Title = "Login shows dashboard"
	after.Priority = models.PriorityHigh
	after.IsAutomated = true

	// Order follows the canonical field order, not the edit order.
	changed := DiffSnapshots(before, after)
	require.Equal(t, []string{"title", "priority", "steps", "is_automated"}, changed)
}

func TestDiffSnapshotsIgnoresStatus(t *testing.T) {
	before := TestCaseSnapshot{Title: "A", Status: models.StatusUntested}
	after := TestCaseSnapshot{Title: "A", Status: models.StatusPassed}

	require.Empty(t, DiffSnapshots(before, after))
}

func TestChangedFieldList(t *testing.T) {
	require.Equal(t, "title,steps", ChangedFieldList([]string{"title", "steps"}))
	require.Equal(t, models.HistoryNoChanges, ChangedFieldList(nil))
}

func TestSnapshotEncodeDecodeRoundTrip(t *testing.T) {
	original := TestCaseSnapshot{
		Title:          "Search returns results",
		Description:    "Basic keyword search",
		Priority:       models.PriorityMedium,
		Tags:           "search",
		ExpectedResult: "Ten results per page",
		IsAutomated:    true,
	}

	encoded, err := original.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(encoded)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestDecodeSnapshotCorrupt(t *testing.T) {
	_, err := DecodeSnapshot(nil)
	require.ErrorIs(t, err, ErrCorruptSnapshot)

	_, err = DecodeSnapshot(datatypes.JSON(`{"title": `))
	require.Error(t, err)
	require.Equal(t, ErrCorruptSnapshot.Code, appErrorCode(t, err))
}

func TestSnapshotOfCapturesStatusButApplySkipsIt(t *testing.T) {
	tc := &models.TestCase{
		Title:    "Original",
		Priority: models.PriorityLow,
		Status:   models.StatusFailed,
	}

	snap := SnapshotOf(tc)
	require.Equal(t, models.StatusFailed, snap.Status)

	snap.Title = "Replaced"
	snap.Status = models.StatusPassed
	snap.applyTo(tc)

	require.Equal(t, "Replaced", tc.Title)
	require.Equal(t, models.StatusFailed, tc.Status)
}
