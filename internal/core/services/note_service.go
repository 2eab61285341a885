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

var ErrNotesStaffOnly = domain.Forbidden("Access denied: Lenders only.")

// NoteService manages internal staff notes on a loan
type NoteService struct {
	tx    repositories.Transactor
	loans repositories.LoanRepository
	notes repositories.NoteRepository
	audit *AuditService
}

// NewNoteService creates a new note service
func NewNoteService(tx repositories.Transactor, loans repositories.LoanRepository, notes repositories.NoteRepository, audit *AuditService) *NoteService {
	return &NoteService{tx: tx, loans: loans, notes: notes, audit: audit}
}

// CreateNoteInput represents a new note
type CreateNoteInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// List returns a loan's notes, newest first
func (s *NoteService) List(ctx context.Context, actor domain.Actor, loanID string) ([]*models.NoteResponse, error) {
	if err := s.check(ctx, actor, loanID); err != nil {
		return nil, err
	}
	notes, err := s.notes.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.NoteResponse, len(notes))
	for i, n := range notes {
		out[i] = n.ToResponse()
	}
	return out, nil
}

// Create adds a note authored by actor
func (s *NoteService) Create(ctx context.Context, actor domain.Actor, loanID string, input CreateNoteInput) (*models.NoteResponse, error) {
	input.Content = strings.TrimSpace(input.Content)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	note := &models.LoanNote{LoanID: loanID, UserID: actor.ID, Content: input.Content}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.check(ctx, actor, loanID); err != nil {
			return err
		}
		if err := s.notes.Create(ctx, note); err != nil {
			return err
		}
		return s.audit.RecordActor(ctx, actor, domain.AuditNoteCreate, domain.Metadata{
			"loanId": loanID,
			"noteId": note.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return note.ToResponse(), nil
}

func (s *NoteService) check(ctx context.Context, actor domain.Actor, loanID string) error {
	if !actor.IsStaff() {
		return ErrNotesStaffOnly
	}
	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.ErrLoanNotFound
		}
		return err
	}
	return nil
}
