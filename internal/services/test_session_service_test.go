package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kylejeon/testflow/internal/models"
)

func TestSessionLogIsAppendOnlyWhileActive(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)

	sessions, err := NewTestSessionService(db)
	require.NoError(t, err)

	session, err := sessions.Start(t.Context(), project.ID, owner.ID, "Charter: payments edge cases", "Exercise currency rounding")
	require.NoError(t, err)
	require.Equal(t, models.SessionActive, session.Status)

	_, err = sessions.AppendLog(t.Context(), project.ID, session.ID, owner.ID, models.LogNote, "Rounded down at 0.005")
	require.NoError(t, err)
	_, err = sessions.AppendLog(t.Context(), project.ID, session.ID, owner.ID, models.LogBug, "Total off by one cent")
	require.NoError(t, err)

	_, err = sessions.AppendLog(t.Context(), project.ID, session.ID, owner.ID, "rant", "not a kind")
	require.Error(t, err)

	ended, err := sessions.End(t.Context(), project.ID, session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionCompleted, ended.Status)
	require.NotNil(t, ended.EndedAt)

	_, err = sessions.AppendLog(t.Context(), project.ID, session.ID, owner.ID, models.LogNote, "too late")
	require.ErrorIs(t, err, ErrSessionEnded)

	loaded, err := sessions.Get(t.Context(), project.ID, session.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Logs, 2)
	require.Equal(t, models.LogNote, loaded.Logs[0].Kind)
	require.Equal(t, models.LogBug, loaded.Logs[1].Kind)

	// Ending twice is harmless.
	_, err = sessions.End(t.Context(), project.ID, session.ID)
	require.NoError(t, err)
}

func TestDocumentLifecycle(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)

	documents, err := NewDocumentService(db)
	require.NoError(t, err)

	doc, err := documents.Create(t.Context(), project.ID, owner.ID, "Release checklist", "<p>Steps</p>")
	require.NoError(t, err)

	updated, err := documents.Update(t.Context(), project.ID, doc.ID, "Release checklist v2", "<p>More steps</p>")
	require.NoError(t, err)
	require.Equal(t, "Release checklist v2", updated.Title)

	listed, err := documents.List(t.Context(), project.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, documents.Delete(t.Context(), project.ID, doc.ID))
	_, err = documents.Get(t.Context(), project.ID, doc.ID)
	require.ErrorIs(t, err, ErrDocumentNotFound)
}
