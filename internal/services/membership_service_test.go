package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kylejeon/testflow/internal/models"
)

func TestProjectCreateGrantsOwnerMembership(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")

	projects, err := NewProjectService(db)
	require.NoError(t, err)
	members, err := NewMembershipService(db)
	require.NoError(t, err)

	project, err := projects.Create(t.Context(), owner.ID, "Mobile App", "regression suite")
	require.NoError(t, err)

	member, err := members.Find(t.Context(), project.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, member.Role)

	listed, err := projects.ListForUser(t.Context(), owner.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, project.ID, listed[0].ID)
}

func TestUpdateRoleRejectsOwnerAndUnknownRoles(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)

	members, err := NewMembershipService(db)
	require.NoError(t, err)

	_, err = members.UpdateRole(t.Context(), project.ID, owner.ID, models.RoleAdmin)
	require.ErrorIs(t, err, ErrOwnerImmutable)

	dev := seedUser(t, db, "dev@example.com")
	require.NoError(t, db.Create(&models.ProjectMember{
		ProjectID: project.ID,
		UserID:    dev.ID,
		Role:      models.RoleViewer,
	}).Error)

	_, err = members.UpdateRole(t.Context(), project.ID, dev.ID, "superuser")
	require.Error(t, err)

	updated, err := members.UpdateRole(t.Context(), project.ID, dev.ID, models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, updated.Role)
}

func TestRemoveMemberProtectsOwner(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)

	members, err := NewMembershipService(db)
	require.NoError(t, err)

	require.ErrorIs(t, members.Remove(t.Context(), project.ID, owner.ID), ErrOwnerImmutable)

	dev := seedUser(t, db, "dev@example.com")
	require.NoError(t, db.Create(&models.ProjectMember{
		ProjectID: project.ID,
		UserID:    dev.ID,
		Role:      models.RoleMember,
	}).Error)

	require.NoError(t, members.Remove(t.Context(), project.ID, dev.ID))
	_, err = members.Find(t.Context(), project.ID, dev.ID)
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestHasRoleRanksRoles(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	project := seedProject(t, db, owner)

	members, err := NewMembershipService(db)
	require.NoError(t, err)

	viewer := seedUser(t, db, "viewer@example.com")
	require.NoError(t, db.Create(&models.ProjectMember{
		ProjectID: project.ID,
		UserID:    viewer.ID,
		Role:      models.RoleViewer,
	}).Error)

	ok, err := members.HasRole(t.Context(), project.ID, owner.ID, models.RoleAdmin)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = members.HasRole(t.Context(), project.ID, viewer.ID, models.RoleMember)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = members.HasRole(t.Context(), project.ID, viewer.ID, models.RoleViewer)
	require.NoError(t, err)
	require.True(t, ok)

	// Non-members simply lack every role.
	stranger := seedUser(t, db, "stranger@example.com")
	ok, err = members.HasRole(t.Context(), project.ID, stranger.ID, models.RoleViewer)
	require.NoError(t, err)
	require.False(t, ok)
}
