package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/pkg/crypto"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/logger"
	"github.com/kylejeon/testflow/pkg/mail"
	"github.com/kylejeon/testflow/pkg/metrics"
)

const (
	defaultInviteExpiry = 7 * 24 * time.Hour
	inviteTokenLength   = 32
)

var (
	// ErrAlreadyMember indicates the invited email belongs to an existing
	// project member. Only the direct-add branch of Invite raises it;
	// Accept treats pre-existing membership as success.
	ErrAlreadyMember = apperrors.New("ALREADY_MEMBER", "User is already a member of this project", http.StatusConflict)
	// ErrInvalidOrExpired covers unknown, expired, and already-accepted tokens alike;
	// the caller learns nothing about which it was.
	ErrInvalidOrExpired = apperrors.New("INVITATION_INVALID", "Invitation is invalid or has expired", http.StatusNotFound)
	// ErrEmailMismatch indicates the accepting account's email differs from the invited address.
	ErrEmailMismatch = apperrors.New("INVITATION_EMAIL_MISMATCH", "Invitation was issued to a different email address", http.StatusForbidden)
)

// InviteOutcome describes how an Invite call concluded.
type InviteOutcome struct {
	// Added is true when the email belonged to an existing account that was
	// granted membership directly; no invitation row exists in that case.
	Added      bool                      `json:"added"`
	Member     *models.ProjectMember     `json:"member,omitempty"`
	Invitation *models.ProjectInvitation `json:"invitation,omitempty"`
}

// InvitationOption customizes an InvitationService.
type InvitationOption func(*InvitationService)

// WithInviteBaseURL sets the public base URL used in redemption links.
func WithInviteBaseURL(baseURL string) InvitationOption {
	return func(s *InvitationService) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithInviteExpiry overrides the invitation validity window.
func WithInviteExpiry(expiry time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if expiry > 0 {
			s.expiry = expiry
		}
	}
}

// WithInviteClock injects a time source, used by tests to cross the expiry boundary.
func WithInviteClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// InvitationService manages the full lifecycle of project invitations:
// issuing them, short-circuiting to direct membership for known accounts,
// verifying tokens, and converting acceptances into memberships exactly once.
type InvitationService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	expiry  time.Duration
	clock   func() time.Time
}

// NewInvitationService constructs an InvitationService. The mailer may be
// nil; invitation email then silently stays undelivered, and the redemption
// link remains reachable through the invitation listing.
func NewInvitationService(db *gorm.DB, mailer mail.Mailer, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	svc := &InvitationService{
		db:     db,
		mailer: mailer,
		expiry: defaultInviteExpiry,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Invite grants project access to an email address. When the address already
// has an account, membership is created immediately and no invitation or
// email is produced. Otherwise a single-use invitation is issued; re-inviting
// the same address refreshes the existing row with a new token and deadline,
// even after a prior acceptance.
func (s *InvitationService) Invite(ctx context.Context, projectID, inviterID, email, role, fullName string) (*InviteOutcome, error) {
	ctx = ensureContext(ctx)

	email = normalizeEmail(email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if !models.ValidMemberRole(role) {
		return nil, apperrors.NewBadRequest("unknown member role")
	}

	var project models.Project
	err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load project: %w", err)
	}

	var user models.User
	err = s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	switch {
	case err == nil:
		member, err := s.addMember(ctx, projectID, user.ID, role, inviterID)
		if err != nil {
			return nil, err
		}
		metrics.InvitationsIssued.WithLabelValues("added").Inc()
		return &InviteOutcome{Added: true, Member: member}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to the invitation branch
	default:
		return nil, fmt.Errorf("invitation service: lookup user: %w", err)
	}

	invitation, err := s.issue(ctx, &project, inviterID, email, role, fullName)
	if err != nil {
		return nil, err
	}
	metrics.InvitationsIssued.WithLabelValues("invited").Inc()
	return &InviteOutcome{Invitation: invitation}, nil
}

func (s *InvitationService) addMember(ctx context.Context, projectID, userID, role, inviterID string) (*models.ProjectMember, error) {
	member := &models.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		InvitedBy: &inviterID,
	}
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("invitation service: add member: %w", err)
	}
	return member, nil
}

func (s *InvitationService) issue(ctx context.Context, project *models.Project, inviterID, email, role, fullName string) (*models.ProjectInvitation, error) {
	token, err := crypto.GenerateToken(inviteTokenLength)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	now := s.clock()
	invitation := &models.ProjectInvitation{
		ProjectID: project.ID,
		Email:     email,
		Role:      role,
		FullName:  strings.TrimSpace(fullName),
		Token:     token,
		InviterID: inviterID,
		ExpiresAt: now.Add(s.expiry),
	}

	// One row per (project, email): a repeat invite replaces the token and
	// deadline in place and reopens the row if it was previously accepted.
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}, {Name: "email"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"role":        invitation.Role,
			"full_name":   invitation.FullName,
			"token":       invitation.Token,
			"inviter_id":  invitation.InviterID,
			"expires_at":  invitation.ExpiresAt,
			"accepted_at": nil,
			"updated_at":  now,
		}),
	}).Create(invitation).Error
	if err != nil {
		return nil, fmt.Errorf("invitation service: upsert invitation: %w", err)
	}

	s.deliver(ctx, project, invitation)

	return invitation, nil
}

// deliver sends the redemption email. Delivery is best effort: the
// invitation row is already committed, so failures are logged and swallowed.
func (s *InvitationService) deliver(ctx context.Context, project *models.Project, invitation *models.ProjectInvitation) {
	if s.mailer == nil {
		return
	}

	link := s.RedemptionURL(invitation.Token)
	body := fmt.Sprintf(`<p>Hello%s,</p>
<p>You have been invited to join the project <strong>%s</strong>.</p>
<p><a href="%s">Accept the invitation</a></p>
<p>This link is valid until %s and can be used once.</p>`,
		greetingSuffix(invitation.FullName),
		project.Name,
		link,
		invitation.ExpiresAt.Format("January 2, 2006 15:04 MST"),
	)

	msg := mail.Message{
		To:      []string{invitation.Email},
		Subject: fmt.Sprintf("You've been invited to %s", project.Name),
		Body:    body,
		HTML:    true,
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		logger.Error("invitation email delivery failed",
			zap.String("email", invitation.Email),
			zap.String("project_id", invitation.ProjectID),
			zap.Error(err),
		)
	}
}

// RedemptionURL builds the public link that carries the invitation token.
func (s *InvitationService) RedemptionURL(token string) string {
	base := s.baseURL
	if base == "" {
		base = "http://localhost:8080"
	}
	return fmt.Sprintf("%s/invitations/accept?token=%s", base, url.QueryEscape(token))
}

// Verify resolves a token to its pending invitation. Unknown, expired, and
// consumed tokens all yield ErrInvalidOrExpired.
func (s *InvitationService) Verify(ctx context.Context, token string) (*models.ProjectInvitation, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidOrExpired
	}

	var invitation models.ProjectInvitation
	err := s.db.WithContext(ctx).Preload("Project").First(&invitation, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	if !invitation.Pending(s.clock()) {
		return nil, ErrInvalidOrExpired
	}

	return &invitation, nil
}

// AcceptOutcome describes how an Accept call concluded.
type AcceptOutcome struct {
	// AlreadyMember is true when the caller held a membership before this
	// call; the invitation is still marked consumed.
	AlreadyMember bool                  `json:"already_member"`
	Member        *models.ProjectMember `json:"member"`
}

// errAcceptRaceLost marks a transaction that lost the consumption race to a
// concurrent accept of the same token.
var errAcceptRaceLost = errors.New("invitation service: accept race lost")

// Accept converts an invitation into a membership for the given user. The
// invited email must match the accepting account. Acceptance is idempotent:
// when the caller is already a member the call succeeds, marks the
// invitation consumed, and reports AlreadyMember rather than failing, so a
// retried or double-clicked accept never strands the invitee. A consumed
// token held by a non-member stays inert. The membership insert and the
// accepted_at stamp commit together; if the insert fails the invitation
// stays unaccepted and a retry remains possible.
func (s *InvitationService) Accept(ctx context.Context, token string, user *models.User) (*AcceptOutcome, error) {
	ctx = ensureContext(ctx)

	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidOrExpired
	}

	var invitation models.ProjectInvitation
	err := s.db.WithContext(ctx).First(&invitation, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	now := s.clock()
	if !invitation.ExpiresAt.After(now) {
		return nil, ErrInvalidOrExpired
	}
	if !strings.EqualFold(invitation.Email, user.Email) {
		return nil, ErrEmailMismatch
	}

	if existing, err := s.findMember(ctx, invitation.ProjectID, user.ID); err != nil {
		return nil, err
	} else if existing != nil {
		s.consume(ctx, invitation.ID, now)
		return &AcceptOutcome{AlreadyMember: true, Member: existing}, nil
	}

	// The caller holds no membership, so a consumed token is spent.
	if invitation.AcceptedAt != nil {
		return nil, ErrInvalidOrExpired
	}

	member := &models.ProjectMember{
		ProjectID: invitation.ProjectID,
		UserID:    user.ID,
		Role:      invitation.Role,
		InvitedBy: &invitation.InviterID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The accepted_at guard makes consumption single-winner under
		// concurrency: only one transaction moves the row from NULL.
		res := tx.Model(&models.ProjectInvitation{}).
			Where("id = ? AND accepted_at IS NULL", invitation.ID).
			Update("accepted_at", now)
		if res.Error != nil {
			return fmt.Errorf("consume invitation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errAcceptRaceLost
		}

		if err := tx.Create(member).Error; err != nil {
			if isUniqueConstraintError(err) {
				return errAcceptRaceLost
			}
			return fmt.Errorf("create membership: %w", err)
		}

		// Backfill the profile name from the invitation when the account
		// registered without one.
		if strings.TrimSpace(user.FullName) == "" && strings.TrimSpace(invitation.FullName) != "" {
			if err := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("full_name", invitation.FullName).Error; err != nil {
				return fmt.Errorf("backfill user name: %w", err)
			}
			user.FullName = invitation.FullName
		}
		return nil
	})
	if errors.Is(err, errAcceptRaceLost) {
		// A concurrent accept got there first. If it granted this account
		// the membership, the retry still succeeds.
		existing, lookupErr := s.findMember(ctx, invitation.ProjectID, user.ID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			s.consume(ctx, invitation.ID, now)
			return &AcceptOutcome{AlreadyMember: true, Member: existing}, nil
		}
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: %w", err)
	}

	return &AcceptOutcome{Member: member}, nil
}

func (s *InvitationService) findMember(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := s.db.WithContext(ctx).
		First(&member, "project_id = ? AND user_id = ?", projectID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: lookup member: %w", err)
	}
	return &member, nil
}

// consume stamps accepted_at on a still-open invitation. Losing the guard
// means another call already stamped it, which is fine.
func (s *InvitationService) consume(ctx context.Context, invitationID string, now time.Time) {
	err := s.db.WithContext(ctx).Model(&models.ProjectInvitation{}).
		Where("id = ? AND accepted_at IS NULL", invitationID).
		Update("accepted_at", now).Error
	if err != nil {
		logger.Warn("marking invitation accepted failed",
			zap.String("invitation_id", invitationID),
			zap.Error(err),
		)
	}
}

// ListPending returns a project's still-redeemable invitations.
func (s *InvitationService) ListPending(ctx context.Context, projectID string) ([]models.ProjectInvitation, error) {
	ctx = ensureContext(ctx)

	var invitations []models.ProjectInvitation
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND accepted_at IS NULL AND expires_at > ?", projectID, s.clock()).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, fmt.Errorf("invitation service: list invitations: %w", err)
	}
	return invitations, nil
}

// Revoke deletes a pending invitation, invalidating its token.
func (s *InvitationService) Revoke(ctx context.Context, projectID, invitationID string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Where("id = ? AND project_id = ? AND accepted_at IS NULL", invitationID, projectID).
		Delete(&models.ProjectInvitation{})
	if res.Error != nil {
		return fmt.Errorf("invitation service: revoke invitation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidOrExpired
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func greetingSuffix(fullName string) string {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return ""
	}
	return " " + fullName
}
