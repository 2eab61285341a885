package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/core/domain"
	"mortgageos/internal/pkg/jwt"
	"mortgageos/internal/pkg/metrics"
	"mortgageos/internal/pkg/password"
	"mortgageos/internal/pkg/validation"
)

// Login failure reasons recorded in audit metadata
const (
	reasonUnknownEmail    = "UNKNOWN_EMAIL"
	reasonInvalidPassword = "INVALID_PASSWORD"
	reasonAccountLocked   = "ACCOUNT_LOCKED"
)

// AuthService handles authentication business logic
type AuthService struct {
	tx      repositories.Transactor
	users   repositories.UserRepository
	audit   *AuditService
	tokens  *jwt.Manager
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	tx repositories.Transactor,
	users repositories.UserRepository,
	audit *AuditService,
	tokens *jwt.Manager,
	m *metrics.Metrics,
) *AuthService {
	return &AuthService{
		tx:      tx,
		users:   users,
		audit:   audit,
		tokens:  tokens,
		metrics: m,
		now:     time.Now,
	}
}

// LoginInput represents login input
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput represents borrower self-registration
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=191"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

// Session is an issued session token
type Session struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
	User      *models.UserResponse `json:"user"`
}

// Login verifies credentials and issues a session. Failed attempts are
// counted and audited even though the call itself fails.
func (s *AuthService) Login(ctx context.Context, input LoginInput, ip string) (*Session, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(input.Email)

	var user *models.User
	var rejected error

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetByEmail(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			rejected = domain.ErrInvalidCredentials
			return s.audit.Record(ctx, nil, domain.AuditUserLoginFailed, domain.Metadata{
				"email":  email,
				"reason": reasonUnknownEmail,
			}, ip)
		}
		if err != nil {
			return err
		}
		uid := user.ID

		if !user.Status.CanAuthenticate() {
			rejected = domain.ErrAccountLocked
			return s.audit.Record(ctx, &uid, domain.AuditUserLoginFailed, domain.Metadata{
				"email":  email,
				"reason": reasonAccountLocked,
				"status": user.Status,
			}, ip)
		}

		if !password.Verify(input.Password, user.PasswordHash) {
			rejected = domain.ErrInvalidCredentials
			user.FailedAttempts++
			locked := user.FailedAttempts >= domain.MaxFailedAttempts
			fields := []string{repositories.UserFailedAttempts}
			if locked {
				user.Status = domain.UserStatusLocked
				fields = append(fields, repositories.UserStatus)
			}
			if err := s.users.Update(ctx, user, fields...); err != nil {
				return err
			}
			if locked {
				s.metrics.AccountLocked()
				log.Printf("⚠️ Account %s locked after %d failed logins", user.ID, user.FailedAttempts)
			}
			return s.audit.Record(ctx, &uid, domain.AuditUserLoginFailed, domain.Metadata{
				"email":          email,
				"reason":         reasonInvalidPassword,
				"failedAttempts": user.FailedAttempts,
				"locked":         locked,
			}, ip)
		}

		now := s.now()
		user.FailedAttempts = 0
		user.LastLoginAt = &now
		if err := s.users.Update(ctx, user, repositories.UserFailedAttempts, repositories.UserLastLoginAt); err != nil {
			return err
		}
		return s.audit.Record(ctx, &uid, domain.AuditUserLogin, domain.Metadata{
			"method": "EMAIL_PASSWORD",
		}, ip)
	})
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		s.metrics.LoginFailed()
		return nil, rejected
	}

	token, claims, err := s.tokens.Sign(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}

	log.Printf("✅ User %s logged in", user.ID)
	return &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user.ToResponse(),
	}, nil
}

// Register creates an ACTIVE borrower account
func (s *AuthService) Register(ctx context.Context, input RegisterInput, ip string) (*models.UserResponse, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
		Role:         domain.RoleBorrower,
		Status:       domain.UserStatusActive,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.users.ExistsByEmail(ctx, user.Email, "")
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrEmailTaken
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return domain.ErrEmailTaken
			}
			return err
		}
		uid := user.ID
		return s.audit.Record(ctx, &uid, domain.AuditUserRegister, domain.Metadata{
			"email": user.Email,
		}, ip)
	})
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// Logout records the logout when a valid session was presented
func (s *AuthService) Logout(ctx context.Context, actor *domain.Actor) error {
	if actor == nil {
		return nil
	}
	return s.audit.RecordActor(ctx, *actor, domain.AuditUserLogout, nil)
}

// Me returns the current profile from the store
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	return user.ToResponse(), nil
}

// SessionLifetime returns how long issued sessions last
func (s *AuthService) SessionLifetime() time.Duration {
	return s.tokens.Lifetime()
}
