package services

import (
	"context"
	"errors"
	"strings"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/core/domain"
	"mortgageos/internal/pkg/validation"
)

const defaultSettingDescription = "Created via Admin Dashboard"

// SettingsService manages global system configuration
type SettingsService struct {
	tx      repositories.Transactor
	configs repositories.SystemConfigRepository
	audit   *AuditService
}

// NewSettingsService creates a new settings service
func NewSettingsService(tx repositories.Transactor, configs repositories.SystemConfigRepository, audit *AuditService) *SettingsService {
	return &SettingsService{tx: tx, configs: configs, audit: audit}
}

// UpsertSettingInput sets one key
type UpsertSettingInput struct {
	Key   string `json:"key" validate:"required,max=100"`
	Value string `json:"value"`
}

// List returns every setting ordered by key
func (s *SettingsService) List(ctx context.Context) ([]*models.SystemConfig, error) {
	configs, err := s.configs.List(ctx)
	if err != nil {
		return nil, err
	}
	if configs == nil {
		configs = []*models.SystemConfig{}
	}
	return configs, nil
}

// Upsert creates or replaces a setting and records the previous value
func (s *SettingsService) Upsert(ctx context.Context, actor domain.Actor, input UpsertSettingInput) (*models.SystemConfig, error) {
	input.Key = strings.TrimSpace(input.Key)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var cfg *models.SystemConfig
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var previous any
		existing, err := s.configs.Get(ctx, input.Key)
		switch {
		case err == nil:
			previous = existing.Value
			cfg = existing
		case errors.Is(err, repositories.ErrNotFound):
			cfg = &models.SystemConfig{Key: input.Key, Description: defaultSettingDescription}
		default:
			return err
		}

		uid := actor.ID
		cfg.Value = input.Value
		cfg.UpdatedBy = &uid
		if err := s.configs.Upsert(ctx, cfg); err != nil {
			return err
		}
		return s.audit.RecordActor(ctx, actor, domain.AuditSystemConfigChange, domain.Metadata{
			"key":           cfg.Key,
			"newValue":      cfg.Value,
			"previousValue": previous,
		})
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
