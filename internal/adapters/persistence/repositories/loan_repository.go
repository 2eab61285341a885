package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/core/domain"
)

// loanRepository implements LoanRepository interface
type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

// Create creates a new loan application
func (r *loanRepository) Create(ctx context.Context, loan *models.LoanApplication) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(loan).Error
}

// GetByID gets a loan application with its borrower
func (r *loanRepository) GetByID(ctx context.Context, id string) (*models.LoanApplication, error) {
	var loan models.LoanApplication
	err := conn(ctx, r.db).Preload("User").Where("id = ?", id).First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// loanContentColumns are the columns a content edit may touch
var loanContentColumns = []string{
	"LoanType",
	"PropertyState",
	"PropertyAddress",
	"PropertyCity",
	"PropertyZip",
	"EstimatedValue",
	"LoanAmount",
	"FormData",
}

// UpdateContent saves application content guarded by the status it was read with
func (r *loanRepository) UpdateContent(ctx context.Context, loan *models.LoanApplication, expect domain.LoanStatus) (bool, error) {
	res := conn(ctx, r.db).Model(loan).
		Where("status = ?", expect).
		Select(loanContentColumns).
		Updates(loan)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionStatus moves a loan from t.From to t.To. It reports false when the
// stored status no longer matches t.From, leaving the row untouched.
func (r *loanRepository) TransitionStatus(ctx context.Context, t StatusTransition) (bool, error) {
	updates := map[string]interface{}{
		"status":     t.To,
		"updated_at": t.At,
	}
	if t.SubmittedAt != nil {
		updates["submitted_at"] = *t.SubmittedAt
	}

	res := conn(ctx, r.db).Model(&models.LoanApplication{}).
		Where("id = ? AND status = ?", t.LoanID, t.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindActiveByUser returns the borrower's non-terminal application
func (r *loanRepository) FindActiveByUser(ctx context.Context, userID string) (*models.LoanApplication, error) {
	var loan models.LoanApplication
	err := conn(ctx, r.db).
		Where("user_id = ? AND status NOT IN ?", userID, domain.TerminalLoanStatuses).
		Order("created_at DESC").
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// ListByUser lists a borrower's applications, most recently updated first
func (r *loanRepository) ListByUser(ctx context.Context, userID string) ([]*models.LoanApplication, error) {
	var loans []*models.LoanApplication
	err := readConsistent(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Order("updated_at DESC").Find(&loans).Error; err != nil {
			return err
		}
		return fillDocumentCounts(tx, loans)
	})
	return loans, err
}

// ListPipeline lists submitted applications for staff
func (r *loanRepository) ListPipeline(ctx context.Context, filter PipelineFilter) ([]*models.LoanApplication, int64, error) {
	var loans []*models.LoanApplication
	var total int64

	err := readConsistent(ctx, r.db, func(tx *gorm.DB) error {
		q := tx.Model(&models.LoanApplication{}).
			Joins("JOIN users ON users.id = loan_applications.user_id").
			Where("loan_applications.status <> ?", domain.LoanDraft)
		if filter.Status != "" {
			q = q.Where("loan_applications.status = ?", filter.Status)
		}
		if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
			p := likePattern(term)
			q = q.Where("LOWER(users.email) LIKE ? OR LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?", p, p, p)
		}
		q = q.Session(&gorm.Session{})

		if err := q.Count(&total).Error; err != nil {
			return err
		}
		err := q.Preload("User").
			Select("loan_applications.*").
			Order("loan_applications.updated_at DESC").
			Offset(filter.Offset).
			Limit(filter.Limit).
			Find(&loans).Error
		if err != nil {
			return err
		}
		return fillDocumentCounts(tx, loans)
	})
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// CountByStatus counts applications per status
func (r *loanRepository) CountByStatus(ctx context.Context) (map[domain.LoanStatus]int64, error) {
	var rows []struct {
		Status domain.LoanStatus
		Count  int64
	}
	err := conn(ctx, r.db).Model(&models.LoanApplication{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.LoanStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Totals returns the application count and summed estimated value
func (r *loanRepository) Totals(ctx context.Context) (LoanTotals, error) {
	var totals LoanTotals
	err := conn(ctx, r.db).Model(&models.LoanApplication{}).
		Select("COUNT(*) AS total, COALESCE(SUM(estimated_value), 0) AS volume").
		Scan(&totals).Error
	return totals, err
}

func fillDocumentCounts(tx *gorm.DB, loans []*models.LoanApplication) error {
	if len(loans) == 0 {
		return nil
	}
	ids := make([]string, len(loans))
	for i, l := range loans {
		ids[i] = l.ID
	}

	var rows []struct {
		LoanID string
		Count  int64
	}
	err := tx.Model(&models.Document{}).
		Select("loan_id, COUNT(*) AS count").
		Where("loan_id IN ?", ids).
		Group("loan_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.LoanID] = row.Count
	}
	for _, l := range loans {
		l.DocumentCount = counts[l.ID]
	}
	return nil
}
