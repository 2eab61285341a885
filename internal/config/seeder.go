package config

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/core/domain"
	"mortgageos/internal/pkg/password"
)

// Seeder handles database seeding
type Seeder struct {
	tx      repositories.Transactor
	users   repositories.UserRepository
	configs repositories.SystemConfigRepository
}

// NewSeeder creates a new seeder instance
func NewSeeder(tx repositories.Transactor, users repositories.UserRepository, configs repositories.SystemConfigRepository) *Seeder {
	return &Seeder{tx: tx, users: users, configs: configs}
}

type demoUser struct {
	email     string
	firstName string
	lastName  string
	password  string
	role      domain.Role
}

// Demo accounts for development only
var demoUsers = []demoUser{
	{"admin@platform.com", "System", "Admin", "Admin@123", domain.RoleSuperAdmin},
	{"lender@platform.com", "Liam", "Lender", "Pass@123", domain.RoleLender},
	{"borrower@platform.com", "Bob", "Borrower", "Pass@123", domain.RoleBorrower},
}

var defaultSettings = []models.SystemConfig{
	{Key: "max_dti_ratio", Value: "43", Description: "DTI above this percentage is HIGH risk"},
	{Key: "medium_dti_ratio", Value: "36", Description: "DTI above this percentage is MEDIUM risk"},
	{Key: "support_email", Value: "compliance@platform.com", Description: "Shown to locked-out users"},
}

// Run executes all seeders
func (s *Seeder) Run(ctx context.Context, withDemoUsers bool) error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedSettings(ctx); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	if withDemoUsers {
		if err := s.seedDemoUsers(ctx); err != nil {
			return fmt.Errorf("seed demo users: %w", err)
		}
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedSettings inserts missing default settings; existing values are kept
func (s *Seeder) seedSettings(ctx context.Context) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, def := range defaultSettings {
			_, err := s.configs.Get(ctx, def.Key)
			if err == nil {
				continue
			}
			if !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
			cfg := def
			if err := s.configs.Upsert(ctx, &cfg); err != nil {
				return err
			}
		}
		return nil
	})
}

// seedDemoUsers creates the demo accounts that do not exist yet
func (s *Seeder) seedDemoUsers(ctx context.Context) error {
	for _, u := range demoUsers {
		exists, err := s.users.ExistsByEmail(ctx, u.email, "")
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		hash, err := password.Hash(u.password)
		if err != nil {
			return err
		}
		user := &models.User{
			Email:        u.email,
			FirstName:    u.firstName,
			LastName:     u.lastName,
			PasswordHash: hash,
			Role:         u.role,
			Status:       domain.UserStatusActive,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		log.Printf("✅ Demo user created: %s (%s)", u.email, u.role)
	}
	return nil
}
