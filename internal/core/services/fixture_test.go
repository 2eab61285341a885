package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mortgageos/internal/adapters/persistence/memory"
	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/core/domain"
	"mortgageos/internal/pkg/jwt"
	"mortgageos/internal/pkg/metrics"
)

type notification struct {
	to     Recipient
	loanID string
	status domain.LoanStatus
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) StatusChanged(to Recipient, loanID string, status domain.LoanStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{to: to, loanID: loanID, status: status})
}

func (n *recordingNotifier) calls() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

var errAuditDown = errors.New("audit store unavailable")

type failingAuditRepo struct{}

func (failingAuditRepo) Create(context.Context, *models.AuditLog) error { return errAuditDown }

func (failingAuditRepo) List(context.Context, repositories.AuditFilter) ([]*models.AuditLog, int64, error) {
	return nil, 0, errAuditDown
}

// staleLoans serves an earlier copy of one loan, as a reader that lost a race
// with a concurrent writer would have seen it.
type staleLoans struct {
	repositories.LoanRepository
	stale models.LoanApplication
}

func (r staleLoans) GetByID(ctx context.Context, id string) (*models.LoanApplication, error) {
	if id == r.stale.ID {
		loan := r.stale
		return &loan, nil
	}
	return r.LoanRepository.GetByID(ctx, id)
}

// staleUsers does the same for one user looked up by email
type staleUsers struct {
	repositories.UserRepository
	stale models.User
}

func (r staleUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if domain.NormalizeEmail(email) == r.stale.Email {
		user := r.stale
		return &user, nil
	}
	return r.UserRepository.GetByEmail(ctx, email)
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	tokens   *jwt.Manager
	notifier *recordingNotifier
	metrics  *metrics.Metrics

	audit *AuditService
	auth  *AuthService
	loans *LoanService
	users *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	tokens, err := jwt.NewManager("test-secret")
	require.NoError(t, err)

	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		tokens:   tokens,
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
	}
	f.audit = NewAuditService(store.AuditLogs())
	f.auth = NewAuthService(store, store.Users(), f.audit, tokens, f.metrics)
	f.loans = NewLoanService(store, store.Loans(), store.Documents(), f.audit, f.notifier, f.metrics)
	f.users = NewUserService(store, store.Users(), f.audit)
	return f
}

// addUser stores a user with a cheap bcrypt hash
func (f *fixture) addUser(t *testing.T, email, plain string, role domain.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Email:        email,
		FirstName:    "Test",
		LastName:     string(role),
		PasswordHash: string(hash),
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	require.NoError(t, f.store.Users().Create(f.ctx, user))
	return user
}

func actorOf(u *models.User) domain.Actor {
	return domain.Actor{ID: u.ID, Role: u.Role, Email: u.Email}
}

func (f *fixture) auditEntries(t *testing.T, action domain.AuditAction) []*models.AuditLog {
	t.Helper()
	entries, _, err := f.store.AuditLogs().List(f.ctx, repositories.AuditFilter{Action: action, Limit: 1000})
	require.NoError(t, err)
	return entries
}

func (f *fixture) reloadUser(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.Users().GetByID(f.ctx, id)
	require.NoError(t, err)
	return u
}

func (f *fixture) reloadLoan(t *testing.T, id string) *models.LoanApplication {
	t.Helper()
	l, err := f.store.Loans().GetByID(f.ctx, id)
	require.NoError(t, err)
	return l
}

func float(v float64) *float64 { return &v }

// submittedLoan creates and submits a purchase application for borrower
func (f *fixture) submittedLoan(t *testing.T, borrower domain.Actor) *models.LoanResponse {
	t.Helper()
	loan, err := f.loans.Create(f.ctx, borrower, CreateLoanInput{
		LoanType:       domain.LoanTypePurchase,
		PropertyState:  "TX",
		EstimatedValue: float(450000),
	})
	require.NoError(t, err)
	loan, err = f.loans.Submit(f.ctx, borrower, loan.ID)
	require.NoError(t, err)
	return loan
}
