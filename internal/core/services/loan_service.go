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
	"mortgageos/internal/pkg/metrics"
	"mortgageos/internal/pkg/pagination"
	"mortgageos/internal/pkg/response"
	"mortgageos/internal/pkg/validation"
)

// Loan state machine errors
var (
	ErrNotDraft         = domain.Validation("Only draft applications can be submitted.")
	ErrNotOwner         = domain.Forbidden("Only the applicant can perform this action")
	ErrLoanAccess       = domain.Forbidden("Unauthorized access to this loan")
	ErrStaffOnly        = domain.Forbidden("Only loan officers can change the application status")
	ErrInvalidStatus    = domain.Validation("Unknown loan status")
	ErrAlreadyFinalized = domain.Validation("Application is already finalized.")
	ErrConcurrentUpdate = domain.Conflict("The application was modified concurrently; reload and retry")
	ErrNothingToUpdate  = domain.Validation("No changes supplied")
)

// LoanService drives the application lifecycle
type LoanService struct {
	tx       repositories.Transactor
	loans    repositories.LoanRepository
	docs     repositories.DocumentRepository
	audit    *AuditService
	notifier LoanNotifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(
	tx repositories.Transactor,
	loans repositories.LoanRepository,
	docs repositories.DocumentRepository,
	audit *AuditService,
	notifier LoanNotifier,
	m *metrics.Metrics,
) *LoanService {
	return &LoanService{
		tx:       tx,
		loans:    loans,
		docs:     docs,
		audit:    audit,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// CreateLoanInput represents a new application
type CreateLoanInput struct {
	LoanType       domain.LoanType `json:"loanType" validate:"required,oneof=PURCHASE REFINANCE"`
	PropertyState  string          `json:"propertyState" validate:"required,len=2,alpha"`
	EstimatedValue *float64        `json:"estimatedValue" validate:"omitempty,gte=10000"`
}

// UpdateLoanInput is a content patch; nil fields are left unchanged
type UpdateLoanInput struct {
	PropertyAddress *string          `json:"propertyAddress" validate:"omitempty,max=255"`
	PropertyCity    *string          `json:"propertyCity" validate:"omitempty,max=100"`
	PropertyZip     *string          `json:"propertyZip" validate:"omitempty,max=10"`
	EstimatedValue  *float64         `json:"estimatedValue" validate:"omitempty,gte=10000"`
	LoanAmount      *float64         `json:"loanAmount" validate:"omitempty,gt=0"`
	FormData        *domain.FormData `json:"formData"`
}

// SetStatusInput represents a staff status change
type SetStatusInput struct {
	Status string `json:"status" validate:"required"`
}

// LoanDetail is a single application with its documents
type LoanDetail struct {
	*models.LoanResponse
	Documents []*models.Document `json:"documents"`
}

// Create starts a DRAFT application. A borrower may hold one non-terminal application.
func (s *LoanService) Create(ctx context.Context, actor domain.Actor, input CreateLoanInput) (*models.LoanResponse, error) {
	input.PropertyState = strings.ToUpper(strings.TrimSpace(input.PropertyState))
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	loan := &models.LoanApplication{
		UserID:         actor.ID,
		LoanType:       input.LoanType,
		PropertyState:  input.PropertyState,
		EstimatedValue: input.EstimatedValue,
		Status:         domain.LoanDraft,
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		_, err := s.loans.FindActiveByUser(ctx, actor.ID)
		if err == nil {
			return domain.ErrActiveLoanExists
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		if err := s.loans.Create(ctx, loan); err != nil {
			return err
		}
		return s.audit.RecordActor(ctx, actor, domain.AuditLoanCreate, domain.Metadata{
			"loanId": loan.ID,
			"type":   loan.LoanType,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Loan %s created by %s", loan.ID, actor.ID)
	return loan.ToResponse(), nil
}

// Get returns a loan visible to actor
func (s *LoanService) Get(ctx context.Context, actor domain.Actor, loanID string) (*LoanDetail, error) {
	loan, err := s.load(ctx, actor, loanID)
	if err != nil {
		return nil, err
	}

	docs, err := s.docs.ListByLoan(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	loan.DocumentCount = int64(len(docs))
	if docs == nil {
		docs = []*models.Document{}
	}
	return &LoanDetail{LoanResponse: loan.ToResponse(), Documents: docs}, nil
}

// Submit moves the owner's DRAFT application to SUBMITTED. The update is
// conditional on the stored status, so repeated or concurrent submits fail.
func (s *LoanService) Submit(ctx context.Context, actor domain.Actor, loanID string) (*models.LoanResponse, error) {
	var loan *models.LoanApplication

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		loan, err = s.find(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.UserID != actor.ID {
			return ErrNotOwner
		}
		if !domain.CanSubmit(loan.Status) {
			return ErrNotDraft
		}

		now := s.now()
		ok, err := s.loans.TransitionStatus(ctx, repositories.StatusTransition{
			LoanID:      loan.ID,
			From:        domain.LoanDraft,
			To:          domain.LoanSubmitted,
			At:          now,
			SubmittedAt: &now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotDraft
		}

		loan.Status = domain.LoanSubmitted
		loan.SubmittedAt = &now
		loan.UpdatedAt = now
		return s.audit.RecordActor(ctx, actor, domain.AuditLoanSubmit, domain.Metadata{
			"loanId": loan.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChanged(string(domain.LoanSubmitted))
	log.Printf("✅ Loan %s submitted", loan.ID)
	return loan.ToResponse(), nil
}

// SetStatus moves a loan to any recognized status. Staff only. The borrower is
// notified after commit; delivery problems never affect the result.
func (s *LoanService) SetStatus(ctx context.Context, actor domain.Actor, loanID string, input SetStatusInput) (*models.LoanResponse, error) {
	target, valid := domain.ParseLoanStatus(input.Status)
	allowed, _ := domain.CanSetStatus(actor, target)
	if !allowed {
		return nil, ErrStaffOnly
	}
	if !valid {
		return nil, ErrInvalidStatus
	}

	var loan *models.LoanApplication
	var previous domain.LoanStatus

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		loan, err = s.find(ctx, loanID)
		if err != nil {
			return err
		}
		previous = loan.Status

		now := s.now()
		ok, err := s.loans.TransitionStatus(ctx, repositories.StatusTransition{
			LoanID: loan.ID,
			From:   previous,
			To:     target,
			At:     now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}

		loan.Status = target
		loan.UpdatedAt = now
		return s.audit.RecordActor(ctx, actor, domain.AuditStatusChange, domain.Metadata{
			"loanId":         loan.ID,
			"previousStatus": previous,
			"newStatus":      target,
			"updatedBy":      actor.Label(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChanged(string(target))
	log.Printf("✅ Loan %s status %s -> %s by %s", loan.ID, previous, target, actor.ID)

	if loan.User != nil && s.notifier != nil {
		s.notifier.StatusChanged(Recipient{Email: loan.User.Email, FirstName: loan.User.FirstName}, loan.ID, target)
	}
	return loan.ToResponse(), nil
}

// Withdraw lets the owner abandon a non-terminal application
func (s *LoanService) Withdraw(ctx context.Context, actor domain.Actor, loanID string) (*models.LoanResponse, error) {
	var loan *models.LoanApplication

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		loan, err = s.find(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.UserID != actor.ID {
			return ErrNotOwner
		}
		if !domain.CanWithdraw(loan.Status) {
			return ErrAlreadyFinalized
		}

		previous := loan.Status
		now := s.now()
		ok, err := s.loans.TransitionStatus(ctx, repositories.StatusTransition{
			LoanID: loan.ID,
			From:   previous,
			To:     domain.LoanWithdrawn,
			At:     now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}

		loan.Status = domain.LoanWithdrawn
		loan.UpdatedAt = now
		return s.audit.RecordActor(ctx, actor, domain.AuditStatusChange, domain.Metadata{
			"loanId":         loan.ID,
			"previousStatus": previous,
			"newStatus":      domain.LoanWithdrawn,
			"updatedBy":      actor.Label(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChanged(string(domain.LoanWithdrawn))
	return loan.ToResponse(), nil
}

// UpdateContent applies a content patch. Form sections replace stored
// sections whole; terminal loans are editable by staff only.
func (s *LoanService) UpdateContent(ctx context.Context, actor domain.Actor, loanID string, input UpdateLoanInput) (*models.LoanResponse, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var loan *models.LoanApplication
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		loan, err = s.load(ctx, actor, loanID)
		if err != nil {
			return err
		}
		if !domain.CanEditContent(actor, loan.Status) {
			return domain.ErrFinalizedLoan
		}

		fields := applyLoanPatch(loan, input)
		var sections []string
		if input.FormData != nil {
			sections = loan.FormData.Merge(*input.FormData)
		}
		if len(fields) == 0 && len(sections) == 0 {
			return ErrNothingToUpdate
		}

		applied, err := s.loans.UpdateContent(ctx, loan, loan.Status)
		if err != nil {
			return err
		}
		if !applied {
			return ErrConcurrentUpdate
		}
		return s.audit.RecordActor(ctx, actor, domain.AuditLoanUpdate, domain.Metadata{
			"loanId":   loan.ID,
			"fields":   fields,
			"sections": sections,
		})
	})
	if err != nil {
		return nil, err
	}
	return loan.ToResponse(), nil
}

func applyLoanPatch(loan *models.LoanApplication, input UpdateLoanInput) []string {
	var fields []string
	if input.PropertyAddress != nil {
		loan.PropertyAddress = strings.TrimSpace(*input.PropertyAddress)
		fields = append(fields, "propertyAddress")
	}
	if input.PropertyCity != nil {
		loan.PropertyCity = strings.TrimSpace(*input.PropertyCity)
		fields = append(fields, "propertyCity")
	}
	if input.PropertyZip != nil {
		loan.PropertyZip = strings.TrimSpace(*input.PropertyZip)
		fields = append(fields, "propertyZip")
	}
	if input.EstimatedValue != nil {
		v := *input.EstimatedValue
		loan.EstimatedValue = &v
		fields = append(fields, "estimatedValue")
	}
	if input.LoanAmount != nil {
		v := *input.LoanAmount
		loan.LoanAmount = &v
		fields = append(fields, "loanAmount")
	}
	return fields
}

// ListMine returns the actor's own applications
func (s *LoanService) ListMine(ctx context.Context, actor domain.Actor) ([]*models.LoanResponse, error) {
	loans, err := s.loans.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return toLoanResponses(loans), nil
}

// PipelineInput represents staff pipeline filters
type PipelineInput struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// ListPipeline returns non-draft applications for staff
func (s *LoanService) ListPipeline(ctx context.Context, input PipelineInput) ([]*models.LoanResponse, *response.Pagination, error) {
	params := pagination.New(input.Page, input.Limit)
	filter := repositories.PipelineFilter{
		Search: input.Search,
		Offset: params.Offset,
		Limit:  params.Limit,
	}
	if input.Status != "" {
		status, ok := domain.ParseLoanStatus(input.Status)
		if !ok {
			return nil, nil, ErrInvalidStatus
		}
		filter.Status = status
	}

	loans, total, err := s.loans.ListPipeline(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return toLoanResponses(loans), params.Meta(total), nil
}

// Risk computes the debt-to-income summary for a loan
func (s *LoanService) Risk(ctx context.Context, actor domain.Actor, loanID string) (*domain.RiskAssessment, error) {
	loan, err := s.load(ctx, actor, loanID)
	if err != nil {
		return nil, err
	}
	assessment, ok := domain.AssessRisk(loan.FormData)
	if !ok {
		return nil, domain.ErrIncomeUnavailable
	}
	return &assessment, nil
}

// load fetches a loan and applies the read policy
func (s *LoanService) load(ctx context.Context, actor domain.Actor, loanID string) (*models.LoanApplication, error) {
	loan, err := s.find(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !domain.CanAccessLoan(actor, loan.UserID) {
		return nil, ErrLoanAccess
	}
	return loan, nil
}

func (s *LoanService) find(ctx context.Context, loanID string) (*models.LoanApplication, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

func toLoanResponses(loans []*models.LoanApplication) []*models.LoanResponse {
	out := make([]*models.LoanResponse, len(loans))
	for i, l := range loans {
		out[i] = l.ToResponse()
	}
	return out
}
