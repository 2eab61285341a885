package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/core/domain"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(user).Error
}

// GetByID gets a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail gets a user by email, ignoring case
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).Where("LOWER(email) = ?", domain.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmail checks if email is used by any user other than excludeID
func (r *userRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	var count int64
	q := conn(ctx, r.db).Model(&models.User{}).Where("LOWER(email) = ?", domain.NormalizeEmail(email))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// Update writes the named fields of a user
func (r *userRepository) Update(ctx context.Context, user *models.User, fields ...string) error {
	if len(fields) == 0 {
		return errNoFields
	}
	user.Email = domain.NormalizeEmail(user.Email)
	res := conn(ctx, r.db).Model(user).Select(fields).Updates(user)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user; owned loans, documents and notes cascade
func (r *userRepository) Delete(ctx context.Context, id string) error {
	res := conn(ctx, r.db).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List lists users with search and pagination
func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	err := readConsistent(ctx, r.db, func(tx *gorm.DB) error {
		q := tx.Model(&models.User{})
		if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
			p := likePattern(term)
			q = q.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", p, p, p)
		}

		q = q.Session(&gorm.Session{})

		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Order("created_at DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&users).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Count counts all users
func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.User{}).Count(&count).Error
	return count, err
}
