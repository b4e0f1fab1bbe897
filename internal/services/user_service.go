package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kylejeon/testflow/internal/models"
	"github.com/kylejeon/testflow/pkg/crypto"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
	"github.com/kylejeon/testflow/pkg/metrics"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = apperrors.New("EMAIL_TAKEN", "An account with this email already exists", http.StatusConflict)
)

const minPasswordLength = 8

// UserService manages accounts and credential checks.
type UserService struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, clock: time.Now}, nil
}

// Register creates an account with a hashed password.
func (s *UserService) Register(ctx context.Context, email, password, fullName string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email = normalizeEmail(email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewBadRequest("password must be at least 8 characters")
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Email:    email,
		Password: hash,
		FullName: strings.TrimSpace(fullName),
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies credentials and stamps the login time. Failures do
// not reveal whether the account exists.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", normalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user service: lookup user: %w", err)
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.clock()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: stamp login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &user, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// FindByEmail loads a user by email address.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", normalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: lookup user: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes display fields on an account.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, fullName, avatar *string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fullName != nil {
		updates["full_name"] = strings.TrimSpace(*fullName)
	}
	if avatar != nil {
		updates["avatar"] = *avatar
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}
	if fullName != nil {
		user.FullName = strings.TrimSpace(*fullName)
	}
	if avatar != nil {
		user.Avatar = *avatar
	}
	return user, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	ctx = ensureContext(ctx)

	if len(next) < minPasswordLength {
		return apperrors.NewBadRequest("password must be at least 8 characters")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(user.Password, current) {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hash).Error; err != nil {
		return fmt.Errorf("user service: update password: %w", err)
	}
	return nil
}
