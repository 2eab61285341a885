package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/core/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = gorm.ErrDuplicatedKey

	errNoFields = errors.New("update needs at least one field")
)

// Transactor runs fn inside one transaction carried by ctx.
// Repositories called with that ctx join the transaction; a non-nil
// error from fn rolls everything back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserFilter narrows admin user listings
type UserFilter struct {
	Search string
	Offset int
	Limit  int
}

// User fields accepted by UserRepository.Update
const (
	UserEmail          = "Email"
	UserFirstName      = "FirstName"
	UserLastName       = "LastName"
	UserPasswordHash   = "PasswordHash"
	UserRole           = "Role"
	UserStatus         = "Status"
	UserFailedAttempts = "FailedAttempts"
	UserLastLoginAt    = "LastLoginAt"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	// Update writes only the named fields of user; the rest of the row is
	// left as stored.
	Update(ctx context.Context, user *models.User, fields ...string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter UserFilter) ([]*models.User, int64, error)
	Count(ctx context.Context) (int64, error)
}

// StatusTransition is a conditional status update: it applies only while
// the stored status still equals From.
type StatusTransition struct {
	LoanID      string
	From        domain.LoanStatus
	To          domain.LoanStatus
	At          time.Time
	SubmittedAt *time.Time
}

// PipelineFilter narrows the staff loan pipeline
type PipelineFilter struct {
	Status domain.LoanStatus
	Search string
	Offset int
	Limit  int
}

// LoanTotals is the aggregate used by the admin dashboard
type LoanTotals struct {
	Total  int64
	Volume float64
}

// LoanRepository defines loan application repository interface
type LoanRepository interface {
	Create(ctx context.Context, loan *models.LoanApplication) error
	GetByID(ctx context.Context, id string) (*models.LoanApplication, error)
	// UpdateContent writes the editable columns of loan while the stored
	// status still equals expect. It reports false otherwise. Status and
	// ownership columns are never written.
	UpdateContent(ctx context.Context, loan *models.LoanApplication, expect domain.LoanStatus) (bool, error)
	TransitionStatus(ctx context.Context, t StatusTransition) (bool, error)
	FindActiveByUser(ctx context.Context, userID string) (*models.LoanApplication, error)
	ListByUser(ctx context.Context, userID string) ([]*models.LoanApplication, error)
	ListPipeline(ctx context.Context, filter PipelineFilter) ([]*models.LoanApplication, int64, error)
	CountByStatus(ctx context.Context) (map[domain.LoanStatus]int64, error)
	Totals(ctx context.Context) (LoanTotals, error)
}

// DocumentRepository defines document metadata repository interface
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	ListByLoan(ctx context.Context, loanID string) ([]*models.Document, error)
}

// NoteRepository defines loan note repository interface
type NoteRepository interface {
	Create(ctx context.Context, note *models.LoanNote) error
	ListByLoan(ctx context.Context, loanID string) ([]*models.LoanNote, error)
}

// AuditFilter narrows audit listings
type AuditFilter struct {
	Action domain.AuditAction
	UserID string
	Offset int
	Limit  int
}

// AuditLogRepository is append-only: there is no update or delete.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]*models.AuditLog, int64, error)
}

// SystemConfigRepository defines system configuration repository interface
type SystemConfigRepository interface {
	List(ctx context.Context) ([]*models.SystemConfig, error)
	Get(ctx context.Context, key string) (*models.SystemConfig, error)
	Upsert(ctx context.Context, cfg *models.SystemConfig) error
}
