package services

import (
	"context"
	"errors"
	"strings"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/core/domain"
	"mortgageos/internal/pkg/pagination"
	"mortgageos/internal/pkg/password"
	"mortgageos/internal/pkg/response"
	"mortgageos/internal/pkg/validation"
)

// User management errors
var (
	ErrDeleteSelf     = domain.Validation("Cannot delete your own account.")
	ErrInvalidRole    = domain.Validation("Unknown role")
	ErrInvalidAccount = domain.Validation("Unknown account status")
)

// UserService handles admin user management and self-service profiles
type UserService struct {
	tx    repositories.Transactor
	users repositories.UserRepository
	audit *AuditService
}

// NewUserService creates a new user service
func NewUserService(tx repositories.Transactor, users repositories.UserRepository, audit *AuditService) *UserService {
	return &UserService{tx: tx, users: users, audit: audit}
}

// CreateUserInput represents an admin-created account
type CreateUserInput struct {
	Email     string            `json:"email" validate:"required,email,max=191"`
	Password  string            `json:"password" validate:"required,min=8,max=72"`
	FirstName string            `json:"firstName" validate:"required,max=100"`
	LastName  string            `json:"lastName" validate:"required,max=100"`
	Role      domain.Role       `json:"role" validate:"required,oneof=SUPER_ADMIN LENDER BORROWER"`
	Status    domain.UserStatus `json:"status" validate:"omitempty,oneof=ACTIVE PENDING_VERIFICATION"`
}

// UpdateUserInput is an admin patch; nil fields are left unchanged
type UpdateUserInput struct {
	FirstName *string            `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string            `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email     *string            `json:"email" validate:"omitempty,email,max=191"`
	Role      *domain.Role       `json:"role" validate:"omitempty,oneof=SUPER_ADMIN LENDER BORROWER"`
	Status    *domain.UserStatus `json:"status" validate:"omitempty,oneof=ACTIVE PENDING_VERIFICATION LOCKED SUSPENDED"`
}

// UpdateProfileInput is a self-service patch
type UpdateProfileInput struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=191"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
}

// UserListInput represents admin listing filters
type UserListInput struct {
	Page   int
	Limit  int
	Search string
}

// List returns a page of users
func (s *UserService) List(ctx context.Context, input UserListInput) ([]*models.UserResponse, *response.Pagination, error) {
	params := pagination.New(input.Page, input.Limit)
	users, total, err := s.users.List(ctx, repositories.UserFilter{
		Search: input.Search,
		Offset: params.Offset,
		Limit:  params.Limit,
	})
	if err != nil {
		return nil, nil, err
	}

	out := make([]*models.UserResponse, len(users))
	for i, u := range users {
		out[i] = u.ToResponse()
	}
	return out, params.Meta(total), nil
}

// Get returns a single user
func (s *UserService) Get(ctx context.Context, id string) (*models.UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// Create creates an account with any role
func (s *UserService) Create(ctx context.Context, actor domain.Actor, input CreateUserInput) (*models.UserResponse, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.Status == "" {
		input.Status = domain.UserStatusActive
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        input.Email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: hash,
		Role:         input.Role,
		Status:       input.Status,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureEmailFree(ctx, user.Email, ""); err != nil {
			return err
		}
		if err := s.users.Create(ctx, user); err != nil {
			return translateDuplicate(err)
		}
		return s.audit.RecordActor(ctx, actor, domain.AuditUserCreate, domain.Metadata{
			"targetId": user.ID,
			"email":    user.Email,
			"role":     user.Role,
		})
	})
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// Update applies an admin patch. Setting ACTIVE clears the failed-login counter.
func (s *UserService) Update(ctx context.Context, actor domain.Actor, id string, input UpdateUserInput) (*models.UserResponse, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.find(ctx, id)
		if err != nil {
			return err
		}
		previousStatus := user.Status
		changes := domain.Metadata{}
		var fields []string

		if input.FirstName != nil {
			user.FirstName = strings.TrimSpace(*input.FirstName)
			fields = append(fields, repositories.UserFirstName)
			changes["firstName"] = user.FirstName
		}
		if input.LastName != nil {
			user.LastName = strings.TrimSpace(*input.LastName)
			fields = append(fields, repositories.UserLastName)
			changes["lastName"] = user.LastName
		}
		if input.Email != nil {
			email := domain.NormalizeEmail(*input.Email)
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return err
			}
			user.Email = email
			fields = append(fields, repositories.UserEmail)
			changes["email"] = email
		}
		if input.Role != nil {
			if !input.Role.Valid() {
				return ErrInvalidRole
			}
			user.Role = *input.Role
			fields = append(fields, repositories.UserRole)
			changes["role"] = user.Role
		}
		if input.Status != nil {
			if !input.Status.Valid() {
				return ErrInvalidAccount
			}
			user.Status = *input.Status
			fields = append(fields, repositories.UserStatus)
			if user.Status == domain.UserStatusActive {
				user.FailedAttempts = 0
				fields = append(fields, repositories.UserFailedAttempts)
			}
			changes["status"] = user.Status
		}
		if len(changes) == 0 {
			return ErrNothingToUpdate
		}

		if err := s.users.Update(ctx, user, fields...); err != nil {
			return translateDuplicate(err)
		}
		return s.audit.RecordActor(ctx, actor, domain.AuditUserUpdate, domain.Metadata{
			"targetId":       user.ID,
			"changes":        changes,
			"previousStatus": previousStatus,
		})
	})
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// Delete removes a user and everything they own. Audit entries survive with no actor.
func (s *UserService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if id == actor.ID {
		return ErrDeleteSelf
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.find(ctx, id)
		if err != nil {
			return err
		}
		if err := s.users.Delete(ctx, user.ID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		return s.audit.RecordActor(ctx, actor, domain.AuditUserDelete, domain.Metadata{
			"targetId":     user.ID,
			"deletedEmail": user.Email,
		})
	})
}

// GetProfile returns the actor's own profile
func (s *UserService) GetProfile(ctx context.Context, actor domain.Actor) (*models.UserResponse, error) {
	return s.Get(ctx, actor.ID)
}

// UpdateProfile lets any user change their own names, email or password
func (s *UserService) UpdateProfile(ctx context.Context, actor domain.Actor, input UpdateProfileInput) (*models.UserResponse, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var hash string
	if input.Password != nil {
		var err error
		if hash, err = password.Hash(*input.Password); err != nil {
			return nil, err
		}
	}

	var user *models.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.find(ctx, actor.ID)
		if err != nil {
			return err
		}

		var fields, columns []string
		if input.FirstName != nil {
			user.FirstName = strings.TrimSpace(*input.FirstName)
			fields = append(fields, "firstName")
			columns = append(columns, repositories.UserFirstName)
		}
		if input.LastName != nil {
			user.LastName = strings.TrimSpace(*input.LastName)
			fields = append(fields, "lastName")
			columns = append(columns, repositories.UserLastName)
		}
		if input.Email != nil {
			email := domain.NormalizeEmail(*input.Email)
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return err
			}
			user.Email = email
			fields = append(fields, "email")
			columns = append(columns, repositories.UserEmail)
		}
		if hash != "" {
			user.PasswordHash = hash
			fields = append(fields, "password")
			columns = append(columns, repositories.UserPasswordHash)
		}
		if len(fields) == 0 {
			return ErrNothingToUpdate
		}

		if err := s.users.Update(ctx, user, columns...); err != nil {
			return translateDuplicate(err)
		}
		return s.audit.RecordActor(ctx, actor, domain.AuditProfileUpdate, domain.Metadata{
			"fields": fields,
		})
	})
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

func (s *UserService) find(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, excludeID string) error {
	exists, err := s.users.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrEmailTaken
	}
	return nil
}

func translateDuplicate(err error) error {
	if errors.Is(err, repositories.ErrDuplicate) {
		return domain.ErrEmailTaken
	}
	return err
}
