package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgageos/internal/core/domain"
)

type loanActors struct {
	borrower domain.Actor
	other    domain.Actor
	lender   domain.Actor
	admin    domain.Actor
}

func seedActors(t *testing.T, f *fixture) loanActors {
	return loanActors{
		borrower: actorOf(f.addUser(t, "borrower@platform.com", "Pass@123", domain.RoleBorrower)),
		other:    actorOf(f.addUser(t, "other@platform.com", "Pass@123", domain.RoleBorrower)),
		lender:   actorOf(f.addUser(t, "lender@platform.com", "Pass@123", domain.RoleLender)),
		admin:    actorOf(f.addUser(t, "admin@platform.com", "Admin@123", domain.RoleSuperAdmin)),
	}
}

func TestCreate_StartsDraft(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)

	loan, err := f.loans.Create(f.ctx, a.borrower, CreateLoanInput{
		LoanType:       domain.LoanTypePurchase,
		PropertyState:  "tx",
		EstimatedValue: float(450000),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanDraft, loan.Status)
	assert.Equal(t, "TX", loan.PropertyState)
	assert.Equal(t, a.borrower.ID, loan.UserID)

	created := f.auditEntries(t, domain.AuditLoanCreate)
	require.Len(t, created, 1)
	assert.Equal(t, loan.ID, created[0].Metadata["loanId"])
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)

	cases := map[string]CreateLoanInput{
		"bad type":    {LoanType: "LEASE", PropertyState: "TX"},
		"long state":  {LoanType: domain.LoanTypePurchase, PropertyState: "TEX"},
		"small value": {LoanType: domain.LoanTypePurchase, PropertyState: "TX", EstimatedValue: float(500)},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.loans.Create(f.ctx, a.borrower, input)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreate_OneActiveApplication(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)

	first := f.submittedLoan(t, a.borrower)

	_, err := f.loans.Create(f.ctx, a.borrower, CreateLoanInput{LoanType: domain.LoanTypeRefinance, PropertyState: "CA"})
	require.ErrorIs(t, err, domain.ErrActiveLoanExists)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.loans.SetStatus(f.ctx, a.lender, first.ID, SetStatusInput{Status: "CLOSED"})
	require.NoError(t, err)

	second, err := f.loans.Create(f.ctx, a.borrower, CreateLoanInput{LoanType: domain.LoanTypeRefinance, PropertyState: "CA"})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanDraft, second.Status)
}

func TestSubmit_OnlyOnceFromDraft(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)

	loan := f.submittedLoan(t, a.borrower)
	assert.Equal(t, domain.LoanSubmitted, loan.Status)
	require.NotNil(t, loan.SubmittedAt)

	_, err := f.loans.Submit(f.ctx, a.borrower, loan.ID)
	require.ErrorIs(t, err, ErrNotDraft)

	assert.Len(t, f.auditEntries(t, domain.AuditLoanSubmit), 1)
	assert.Empty(t, f.notifier.calls())
}

func TestSubmit_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)

	loan, err := f.loans.Create(f.ctx, a.borrower, CreateLoanInput{LoanType: domain.LoanTypePurchase, PropertyState: "TX"})
	require.NoError(t, err)

	for _, actor := range []domain.Actor{a.other, a.lender} {
		_, err = f.loans.Submit(f.ctx, actor, loan.ID)
		assert.ErrorIs(t, err, ErrNotOwner)
	}
	assert.Equal(t, domain.LoanDraft, f.reloadLoan(t, loan.ID).Status)
}

func TestSetStatus_BorrowerForbiddenForEveryTarget(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)

	targets := []string{"NOT_A_STATUS", ""}
	for _, st := range domain.LoanStatuses {
		targets = append(targets, string(st))
	}

	for _, target := range targets {
		_, err := f.loans.SetStatus(f.ctx, a.borrower, loan.ID, SetStatusInput{Status: target})
		assert.ErrorIs(t, err, domain.ErrForbidden, target)
	}
	assert.Equal(t, domain.LoanSubmitted, f.reloadLoan(t, loan.ID).Status)
	assert.Empty(t, f.auditEntries(t, domain.AuditStatusChange))
}

func TestSetStatus_PermissiveAdjacency(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)

	updated, err := f.loans.SetStatus(f.ctx, a.lender, loan.ID, SetStatusInput{Status: "closed"})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanClosed, updated.Status)

	changes := f.auditEntries(t, domain.AuditStatusChange)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.LoanSubmitted, changes[0].Metadata["previousStatus"])
	assert.Equal(t, domain.LoanClosed, changes[0].Metadata["newStatus"])
	assert.Equal(t, a.lender.Email, changes[0].Metadata["updatedBy"])

	calls := f.notifier.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "borrower@platform.com", calls[0].to.Email)
	assert.Equal(t, domain.LoanClosed, calls[0].status)
}

func TestSetStatus_OneAuditEntryPerChange(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)

	steps := []string{"PROCESSING", "UNDERWRITING", "UNDERWRITING", "CLEAR_TO_CLOSE"}
	for _, s := range steps {
		_, err := f.loans.SetStatus(f.ctx, a.admin, loan.ID, SetStatusInput{Status: s})
		require.NoError(t, err)
	}
	assert.Len(t, f.auditEntries(t, domain.AuditStatusChange), len(steps))
	assert.Len(t, f.notifier.calls(), len(steps))
}

func TestSetStatus_UnknownStatus(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)

	_, err := f.loans.SetStatus(f.ctx, a.lender, loan.ID, SetStatusInput{Status: "FUNDED"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.loans.SetStatus(f.ctx, a.lender, "missing", SetStatusInput{Status: "CLOSED"})
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestSetStatus_AuditFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)

	broken := NewLoanService(f.store, f.store.Loans(), f.store.Documents(), NewAuditService(failingAuditRepo{}), f.notifier, f.metrics)
	_, err := broken.SetStatus(f.ctx, a.lender, loan.ID, SetStatusInput{Status: "APPROVED_CONDITIONAL"})
	require.ErrorIs(t, err, errAuditDown)

	assert.Equal(t, domain.LoanSubmitted, f.reloadLoan(t, loan.ID).Status)
	assert.Empty(t, f.notifier.calls())
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)

	_, err := f.loans.Withdraw(f.ctx, a.other, loan.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	withdrawn, err := f.loans.Withdraw(f.ctx, a.borrower, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanWithdrawn, withdrawn.Status)

	_, err = f.loans.Withdraw(f.ctx, a.borrower, loan.ID)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.Empty(t, f.notifier.calls())
}

func TestUpdateContent(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)

	loan, err := f.loans.Create(f.ctx, a.borrower, CreateLoanInput{LoanType: domain.LoanTypePurchase, PropertyState: "TX"})
	require.NoError(t, err)

	city := "Austin"
	updated, err := f.loans.UpdateContent(f.ctx, a.borrower, loan.ID, UpdateLoanInput{
		PropertyCity: &city,
		FormData: &domain.FormData{
			Income: &domain.IncomeSection{EmployerName: "Acme", MonthlyIncome: 5000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Austin", updated.PropertyCity)
	require.NotNil(t, updated.FormData.Income)
	assert.Equal(t, 5000.0, updated.FormData.Income.MonthlyIncome)

	entries := f.auditEntries(t, domain.AuditLoanUpdate)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"income"}, entries[0].Metadata["sections"])

	_, err = f.loans.UpdateContent(f.ctx, a.other, loan.ID, UpdateLoanInput{PropertyCity: &city})
	assert.ErrorIs(t, err, ErrLoanAccess)

	_, err = f.loans.UpdateContent(f.ctx, a.borrower, loan.ID, UpdateLoanInput{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)
}

func TestUpdateContent_FinalizedLoan(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)
	_, err := f.loans.SetStatus(f.ctx, a.lender, loan.ID, SetStatusInput{Status: "REJECTED"})
	require.NoError(t, err)

	zip := "78701"
	_, err = f.loans.UpdateContent(f.ctx, a.borrower, loan.ID, UpdateLoanInput{PropertyZip: &zip})
	require.ErrorIs(t, err, domain.ErrFinalizedLoan)

	updated, err := f.loans.UpdateContent(f.ctx, a.lender, loan.ID, UpdateLoanInput{PropertyZip: &zip})
	require.NoError(t, err)
	assert.Equal(t, zip, updated.PropertyZip)
}

func TestUpdateContent_DoesNotUndoConcurrentTransition(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)

	loan, err := f.loans.Create(f.ctx, a.borrower, CreateLoanInput{LoanType: domain.LoanTypePurchase, PropertyState: "TX"})
	require.NoError(t, err)
	stale, err := f.store.Loans().GetByID(f.ctx, loan.ID)
	require.NoError(t, err)
	_, err = f.loans.Submit(f.ctx, a.borrower, loan.ID)
	require.NoError(t, err)

	svc := NewLoanService(f.store, staleLoans{LoanRepository: f.store.Loans(), stale: *stale}, f.store.Documents(), f.audit, f.notifier, f.metrics)
	city := "Austin"
	_, err = svc.UpdateContent(f.ctx, a.borrower, loan.ID, UpdateLoanInput{PropertyCity: &city})
	require.ErrorIs(t, err, ErrConcurrentUpdate)

	stored, err := f.store.Loans().GetByID(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanSubmitted, stored.Status)
	assert.NotNil(t, stored.SubmittedAt)
	assert.Empty(t, stored.PropertyCity)
	assert.Empty(t, f.auditEntries(t, domain.AuditLoanUpdate))
}

func TestGet_AccessPolicy(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)

	for _, actor := range []domain.Actor{a.borrower, a.lender, a.admin} {
		detail, err := f.loans.Get(f.ctx, actor, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.ID, detail.ID)
		assert.NotNil(t, detail.Documents)
	}

	_, err := f.loans.Get(f.ctx, a.other, loan.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.loans.Get(f.ctx, a.borrower, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPipeline_ExcludesDrafts(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	submitted := f.submittedLoan(t, a.borrower)
	_, err := f.loans.Create(f.ctx, a.other, CreateLoanInput{LoanType: domain.LoanTypePurchase, PropertyState: "NY"})
	require.NoError(t, err)

	loans, page, err := f.loans.ListPipeline(f.ctx, PipelineInput{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, submitted.ID, loans[0].ID)
	assert.Equal(t, int64(1), page.Total)

	loans, _, err = f.loans.ListPipeline(f.ctx, PipelineInput{Status: "closed"})
	require.NoError(t, err)
	assert.Empty(t, loans)

	_, _, err = f.loans.ListPipeline(f.ctx, PipelineInput{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	mine, err := f.loans.ListMine(f.ctx, a.borrower)
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestRisk(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan, err := f.loans.Create(f.ctx, a.borrower, CreateLoanInput{LoanType: domain.LoanTypePurchase, PropertyState: "TX"})
	require.NoError(t, err)

	_, err = f.loans.Risk(f.ctx, a.lender, loan.ID)
	require.ErrorIs(t, err, domain.ErrIncomeUnavailable)

	_, err = f.loans.UpdateContent(f.ctx, a.borrower, loan.ID, UpdateLoanInput{
		FormData: &domain.FormData{Income: &domain.IncomeSection{MonthlyIncome: 3750}},
	})
	require.NoError(t, err)

	risk, err := f.loans.Risk(f.ctx, a.lender, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, risk.DTI)
	assert.Equal(t, domain.RiskMedium, risk.Level)
}
