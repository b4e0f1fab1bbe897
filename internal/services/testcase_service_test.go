package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kylejeon/testflow/internal/models"
)

func TestCreateWritesCreatedHistoryEntry(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)

	testCase := seedCase(t, db, svc, project.ID, owner.ID)
	require.Equal(t, models.StatusUntested, testCase.Status)

	entries := caseHistory(t, db, testCase.ID)
	require.Len(t, entries, 1)
	require.Equal(t, models.HistoryCreated, entries[0].Action)
	require.Equal(t, owner.ID, entries[0].ActorID)
	require.Empty(t, entries[0].Before)
	require.NotEmpty(t, entries[0].After)

	after, err := DecodeSnapshot(entries[0].After)
	require.NoError(t, err)
	require.Equal(t, testCase.Title, after.Title)
}

func TestCreateRejectsEmptyTitleWithoutSideEffects(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)

	_, err = svc.Create(t.Context(), project.ID, owner.ID, CreateTestCaseInput{Title: "   "})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.TestCase{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.TestCaseHistory{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestUpdateRecordsFullSnapshotsAndChangedFields(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	before := SnapshotOf(testCase)
	after := before
	after.Title = "Checkout declines stolen card"
	after.Priority = models.PriorityCritical

	updated, err := svc.Update(t.Context(), project.ID, testCase.ID, owner.ID, before, after)
	require.NoError(t, err)
	require.Equal(t, "Checkout declines stolen card", updated.Title)
	require.Equal(t, models.PriorityCritical, updated.Priority)

	entries := caseHistory(t, db, testCase.ID)
	require.Len(t, entries, 2)

	entry := entries[1]
	require.Equal(t, models.HistoryUpdated, entry.Action)
	require.Equal(t, "title,priority", entry.FieldNames)

	storedBefore, err := DecodeSnapshot(entry.Before)
	require.NoError(t, err)
	storedAfter, err := DecodeSnapshot(entry.After)
	require.NoError(t, err)

	// Full snapshots: unchanged fields are present on both sides.
	require.Equal(t, before.Steps, storedBefore.Steps)
	require.Equal(t, before.Steps, storedAfter.Steps)
	require.Equal(t, "Checkout declines expired card", storedBefore.Title)
	require.Equal(t, "Checkout declines stolen card", storedAfter.Title)
}

func TestNoOpSaveIsLoggedWithSentinel(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	snap := SnapshotOf(testCase)
	_, err = svc.Update(t.Context(), project.ID, testCase.ID, owner.ID, snap, snap)
	require.NoError(t, err)

	entries := caseHistory(t, db, testCase.ID)
	require.Len(t, entries, 2)
	require.Equal(t, models.HistoryUpdated, entries[1].Action)
	require.Equal(t, models.HistoryNoChanges, entries[1].FieldNames)
	require.NotEmpty(t, entries[1].Before)
	require.NotEmpty(t, entries[1].After)
}

func TestUpdateStatusLogsStatusOnly(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	updated, err := svc.UpdateStatus(t.Context(), project.ID, testCase.ID, owner.ID, models.StatusPassed)
	require.NoError(t, err)
	require.Equal(t, models.StatusPassed, updated.Status)

	entries := caseHistory(t, db, testCase.ID)
	require.Len(t, entries, 2)
	require.Equal(t, "status", entries[1].FieldNames)

	storedBefore, err := DecodeSnapshot(entries[1].Before)
	require.NoError(t, err)
	storedAfter, err := DecodeSnapshot(entries[1].After)
	require.NoError(t, err)
	require.Equal(t, models.StatusUntested, storedBefore.Status)
	require.Equal(t, models.StatusPassed, storedAfter.Status)
}

func TestRestoreRevertsTrackedFieldsButNotStatus(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	originalTitle := testCase.Title

	before := SnapshotOf(testCase)
	after := before
	after.Title = "Renamed by mistake"
	after.Tags = "oops"
	_, err = svc.Update(t.Context(), project.ID, testCase.ID, owner.ID, before, after)
	require.NoError(t, err)

	// An unrelated status transition afterwards must survive the restore.
	_, err = svc.UpdateStatus(t.Context(), project.ID, testCase.ID, owner.ID, models.StatusFailed)
	require.NoError(t, err)

	var updateEntry models.TestCaseHistory
	require.NoError(t, db.
		Where("test_case_id = ? AND action = ? AND field_names = ?",
			testCase.ID, models.HistoryUpdated, "title,tags").
		Take(&updateEntry).Error)

	restored, err := svc.Restore(t.Context(), project.ID, updateEntry.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, originalTitle, restored.Title)
	require.Equal(t, "payments,negative", restored.Tags)
	require.Equal(t, models.StatusFailed, restored.Status)

	entries := caseHistory(t, db, testCase.ID)
	last := entries[len(entries)-1]
	require.Equal(t, models.HistoryRestored, last.Action)

	// The restore's before-snapshot is the pre-restore state, so the
	// restore itself can be undone.
	preRestore, err := DecodeSnapshot(last.Before)
	require.NoError(t, err)
	require.Equal(t, "Renamed by mistake", preRestore.Title)

	undone, err := svc.Restore(t.Context(), project.ID, last.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed by mistake", undone.Title)
}

func TestRestoreRejectsCreatedEntries(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	entries := caseHistory(t, db, testCase.ID)
	_, err = svc.Restore(t.Context(), project.ID, entries[0].ID, owner.ID)
	require.ErrorIs(t, err, ErrNotRestorable)
}

func TestRestoreCorruptSnapshotLeavesRecordUntouched(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	snap := SnapshotOf(testCase)
	_, err = svc.Update(t.Context(), project.ID, testCase.ID, owner.ID, snap, snap)
	require.NoError(t, err)

	var entry models.TestCaseHistory
	require.NoError(t, db.
		Where("test_case_id = ? AND action = ?", testCase.ID, models.HistoryUpdated).
		Take(&entry).Error)
	require.NoError(t, db.Model(&entry).Update("before", `{"title": `).Error)

	_, err = svc.Restore(t.Context(), project.ID, entry.ID, owner.ID)
	require.Error(t, err)
	require.Equal(t, ErrCorruptSnapshot.Code, appErrorCode(t, err))

	current, err := svc.Get(t.Context(), project.ID, testCase.ID)
	require.NoError(t, err)
	require.Equal(t, testCase.Title, current.Title)
}

func TestDeleteWritesTerminalEntryAndKeepsHistory(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	require.NoError(t, svc.Delete(t.Context(), project.ID, testCase.ID, owner.ID))

	_, err = svc.Get(t.Context(), project.ID, testCase.ID)
	require.ErrorIs(t, err, ErrTestCaseNotFound)

	entries := caseHistory(t, db, testCase.ID)
	require.Len(t, entries, 2)
	last := entries[len(entries)-1]
	require.Equal(t, models.HistoryDeleted, last.Action)
	require.NotEmpty(t, last.Before)
	require.Empty(t, last.After)
}

func TestHistoryAnnotatesActors(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	editor := seedUser(t, db, "editor@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	snap := SnapshotOf(testCase)
	edited := snap
	edited.Assignee = editor.ID
	_, err = svc.Update(t.Context(), project.ID, testCase.ID, editor.ID, snap, edited)
	require.NoError(t, err)

	views, err := svc.History(t.Context(), project.ID, testCase.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byActor := map[string]string{}
	for _, view := range views {
		byActor[view.ActorID] = view.ActorEmail
	}
	require.Equal(t, "owner@example.com", byActor[owner.ID])
	require.Equal(t, "editor@example.com", byActor[editor.ID])
}

func TestCaseLookupsAreProjectScoped(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	other := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	// A case id is invisible through any project but its own.
	_, err = svc.Get(t.Context(), other.ID, testCase.ID)
	require.ErrorIs(t, err, ErrTestCaseNotFound)

	snap := SnapshotOf(testCase)
	edited := snap
	edited.Title = "Hijacked title"
	_, err = svc.Update(t.Context(), other.ID, testCase.ID, owner.ID, snap, edited)
	require.ErrorIs(t, err, ErrTestCaseNotFound)

	_, err = svc.UpdateStatus(t.Context(), other.ID, testCase.ID, owner.ID, models.StatusPassed)
	require.ErrorIs(t, err, ErrTestCaseNotFound)

	err = svc.Delete(t.Context(), other.ID, testCase.ID, owner.ID)
	require.ErrorIs(t, err, ErrTestCaseNotFound)

	views, err := svc.History(t.Context(), other.ID, testCase.ID)
	require.NoError(t, err)
	require.Empty(t, views)

	// History entries cannot be restored through another project either.
	renamed := snap
	renamed.Title = "Renamed in place"
	_, err = svc.Update(t.Context(), project.ID, testCase.ID, owner.ID, snap, renamed)
	require.NoError(t, err)

	entries := caseHistory(t, db, testCase.ID)
	updateEntry := entries[len(entries)-1]
	_, err = svc.Restore(t.Context(), other.ID, updateEntry.ID, owner.ID)
	require.ErrorIs(t, err, ErrHistoryEntryNotFound)

	// Nothing leaked through the wrong project scope.
	current, err := svc.Get(t.Context(), project.ID, testCase.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed in place", current.Title)
	require.Equal(t, models.StatusUntested, current.Status)

	var count int64
	require.NoError(t, db.Model(&models.TestCase{}).
		Where("id = ?", testCase.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestHistoryOrderIsStableForEqualTimestamps(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)
	testCase := seedCase(t, db, svc, project.ID, owner.ID)

	snap := SnapshotOf(testCase)
	for i := 0; i < 3; i++ {
		_, err = svc.Update(t.Context(), project.ID, testCase.ID, owner.ID, snap, snap)
		require.NoError(t, err)
	}

	// Collapse all write times onto one instant so ordering cannot lean
	// on the timestamp alone.
	require.NoError(t, db.Model(&models.TestCaseHistory{}).
		Where("test_case_id = ?", testCase.ID).
		Update("created_at", testCase.CreatedAt).Error)

	first, err := svc.History(t.Context(), project.ID, testCase.ID)
	require.NoError(t, err)
	require.Len(t, first, 4)

	second, err := svc.History(t.Context(), project.ID, testCase.ID)
	require.NoError(t, err)
	for i := range first {
		require.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestListFilters(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)
	svc, err := NewTestCaseService(db)
	require.NoError(t, err)

	seedCase(t, db, svc, project.ID, owner.ID)
	other, err := svc.Create(t.Context(), project.ID, owner.ID, CreateTestCaseInput{
		Title:    "Profile update persists",
		Priority: models.PriorityLow,
		Folder:   "Account",
	})
	require.NoError(t, err)

	cases, err := svc.List(t.Context(), project.ID, TestCaseFilters{Folder: "Account"})
	require.NoError(t, err)
	require.Len(t, cases, 1)
	require.Equal(t, other.ID, cases[0].ID)

	cases, err = svc.List(t.Context(), project.ID, TestCaseFilters{Search: "expired"})
	require.NoError(t, err)
	require.Len(t, cases, 1)

	cases, err = svc.List(t.Context(), project.ID, TestCaseFilters{})
	require.NoError(t, err)
	require.Len(t, cases, 2)
}
