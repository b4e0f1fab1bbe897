package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kylejeon/testflow/internal/models"
)

func TestFolderNamesUniquePerProject(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)

	folders, err := NewFolderService(db)
	require.NoError(t, err)

	_, err = folders.Create(t.Context(), project.ID, "Checkout")
	require.NoError(t, err)

	_, err = folders.Create(t.Context(), project.ID, "Checkout")
	require.ErrorIs(t, err, ErrFolderExists)

	// Same name is fine in a different project.
	other := seedProject(t, db, owner)
	_, err = folders.Create(t.Context(), other.ID, "Checkout")
	require.NoError(t, err)
}

func TestRenameFolderRelabelsCases(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)

	folders, err := NewFolderService(db)
	require.NoError(t, err)
	cases, err := NewTestCaseService(db)
	require.NoError(t, err)

	folder, err := folders.Create(t.Context(), project.ID, "Checkout")
	require.NoError(t, err)
	testCase := seedCase(t, db, cases, project.ID, owner.ID)

	renamed, err := folders.Rename(t.Context(), project.ID, folder.ID, "Payments")
	require.NoError(t, err)
	require.Equal(t, "Payments", renamed.Name)

	current, err := cases.Get(t.Context(), project.ID, testCase.ID)
	require.NoError(t, err)
	require.Equal(t, "Payments", current.Folder)
}

func TestDeleteFolderUnfilesCases(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)

	folders, err := NewFolderService(db)
	require.NoError(t, err)
	cases, err := NewTestCaseService(db)
	require.NoError(t, err)

	folder, err := folders.Create(t.Context(), project.ID, "Checkout")
	require.NoError(t, err)
	testCase := seedCase(t, db, cases, project.ID, owner.ID)

	require.NoError(t, folders.Delete(t.Context(), project.ID, folder.ID))

	current, err := cases.Get(t.Context(), project.ID, testCase.ID)
	require.NoError(t, err)
	require.Empty(t, current.Folder)

	var count int64
	require.NoError(t, db.Model(&models.Folder{}).Count(&count).Error)
	require.Zero(t, count)
}
