package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"github.com/kylejeon/testflow/internal/models"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
)

var (
	// ErrMemberNotFound indicates no membership exists for the (project, user) pair.
	ErrMemberNotFound = apperrors.New("MEMBER_NOT_FOUND", "Project member not found", http.StatusNotFound)
	// ErrOwnerImmutable rejects role changes and removal of the project owner.
	ErrOwnerImmutable = apperrors.New("OWNER_IMMUTABLE", "The project owner cannot be modified or removed", http.StatusBadRequest)
)

// roleRank orders roles by privilege for permission checks.
var roleRank = map[string]int{
	models.RoleViewer: 1,
	models.RoleMember: 2,
	models.RoleAdmin:  3,
	models.RoleOwner:  4,
}

// MembershipService manages the members of a project.
type MembershipService struct {
	db *gorm.DB
}

// NewMembershipService constructs a MembershipService.
func NewMembershipService(db *gorm.DB) (*MembershipService, error) {
	if db == nil {
		return nil, errors.New("membership service: db is required")
	}
	return &MembershipService{db: db}, nil
}

// List returns a project's members with their user profiles preloaded.
func (s *MembershipService) List(ctx context.Context, projectID string) ([]models.ProjectMember, error) {
	ctx = ensureContext(ctx)

	var members []models.ProjectMember
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("membership service: list members: %w", err)
	}
	return members, nil
}

// Find returns the membership for a user in a project, if any.
func (s *MembershipService) Find(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	ctx = ensureContext(ctx)

	var member models.ProjectMember
	err := s.db.WithContext(ctx).
		First(&member, "project_id = ? AND user_id = ?", projectID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("membership service: load member: %w", err)
	}
	return &member, nil
}

// UpdateRole changes a member's role. The owner role is fixed for the life of
// the project: it can be neither granted nor taken away here.
func (s *MembershipService) UpdateRole(ctx context.Context, projectID, userID, role string) (*models.ProjectMember, error) {
	ctx = ensureContext(ctx)

	if !models.ValidMemberRole(role) {
		return nil, apperrors.NewBadRequest("unknown member role")
	}

	member, err := s.Find(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if member.Role == models.RoleOwner {
		return nil, ErrOwnerImmutable
	}

	if err := s.db.WithContext(ctx).Model(member).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("membership service: update role: %w", err)
	}
	member.Role = role
	return member, nil
}

// Remove deletes a membership. The owner cannot be removed.
func (s *MembershipService) Remove(ctx context.Context, projectID, userID string) error {
	ctx = ensureContext(ctx)

	member, err := s.Find(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if member.Role == models.RoleOwner {
		return ErrOwnerImmutable
	}

	if err := s.db.WithContext(ctx).Delete(member).Error; err != nil {
		return fmt.Errorf("membership service: remove member: %w", err)
	}
	return nil
}

// HasRole reports whether the user holds at least the given role in the
// project. Unknown memberships simply report false.
func (s *MembershipService) HasRole(ctx context.Context, projectID, userID, minimum string) (bool, error) {
	member, err := s.Find(ctx, projectID, userID)
	if errors.Is(err, ErrMemberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return roleRank[member.Role] >= roleRank[minimum], nil
}
