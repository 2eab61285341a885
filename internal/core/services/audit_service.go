package services

import (
	"context"
	"fmt"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/core/domain"
	"mortgageos/internal/pkg/pagination"
	"mortgageos/internal/pkg/response"
)

// AuditService appends to and reads the audit trail
type AuditService struct {
	repo repositories.AuditLogRepository
}

// NewAuditService creates a new audit service
func NewAuditService(repo repositories.AuditLogRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record appends one entry using the transaction carried by ctx, if any.
// A failure must fail the enclosing operation.
func (s *AuditService) Record(ctx context.Context, actorID *string, action domain.AuditAction, metadata domain.Metadata, ip string) error {
	if !action.Valid() {
		return fmt.Errorf("record audit: unknown action %q", action)
	}
	if metadata == nil {
		metadata = domain.Metadata{}
	}

	entry := &models.AuditLog{
		UserID:    actorID,
		Action:    action,
		Metadata:  metadata,
		IPAddress: ip,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("record audit %s: %w", action, err)
	}
	return nil
}

// RecordActor records an entry attributed to actor
func (s *AuditService) RecordActor(ctx context.Context, actor domain.Actor, action domain.AuditAction, metadata domain.Metadata) error {
	var id *string
	if actor.ID != "" {
		uid := actor.ID
		id = &uid
	}
	return s.Record(ctx, id, action, metadata, actor.IPAddress)
}

// AuditListInput represents audit listing filters
type AuditListInput struct {
	Page   int
	Limit  int
	Action string
	UserID string
}

// List returns a page of entries, newest first
func (s *AuditService) List(ctx context.Context, input AuditListInput) ([]*models.AuditLogResponse, *response.Pagination, error) {
	params := pagination.New(input.Page, input.Limit)

	filter := repositories.AuditFilter{
		UserID: input.UserID,
		Offset: params.Offset,
		Limit:  params.Limit,
	}
	if input.Action != "" {
		action := domain.AuditAction(input.Action)
		if !action.Valid() {
			return nil, nil, domain.Validation("Unknown audit action: " + input.Action)
		}
		filter.Action = action
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	out := make([]*models.AuditLogResponse, len(entries))
	for i, e := range entries {
		out[i] = e.ToResponse()
	}
	return out, params.Meta(total), nil
}
