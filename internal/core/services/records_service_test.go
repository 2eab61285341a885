package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgageos/internal/adapters/storage"
	"mortgageos/internal/core/domain"
)

type memFileStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
	saveErr error
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: map[string][]byte{}}
}

func (m *memFileStore) Save(ctx context.Context, obj storage.Object) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "/uploads/" + obj.Name
	m.files[url] = body
	return url, nil
}

func (m *memFileStore) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, url)
	m.deleted = append(m.deleted, url)
	return nil
}

func upload(name, body string) UploadInput {
	return UploadInput{Name: name, ContentType: "application/pdf", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestDocumentService_Upload(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)
	files := newMemFileStore()
	docs := NewDocumentService(f.store, f.store.Loans(), f.store.Documents(), files, f.audit)

	doc, err := docs.Upload(f.ctx, a.borrower, loan.ID, upload("w2.pdf", "%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/w2.pdf", doc.URL)
	assert.Equal(t, "GENERAL", doc.Type)
	assert.Equal(t, "PENDING", doc.Status)
	assert.Len(t, files.files, 1)

	uploads := f.auditEntries(t, domain.AuditDocumentUpload)
	require.Len(t, uploads, 1)
	assert.Equal(t, doc.ID, uploads[0].Metadata["docId"])

	listed, err := docs.List(f.ctx, a.lender, loan.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	detail, err := f.loans.Get(f.ctx, a.borrower, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.DocumentCount)

	_, err = docs.Upload(f.ctx, a.other, loan.ID, upload("x.pdf", "x"))
	assert.ErrorIs(t, err, ErrLoanAccess)
	_, err = docs.List(f.ctx, a.other, loan.ID)
	assert.ErrorIs(t, err, ErrLoanAccess)
}

func TestDocumentService_UploadRejects(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)
	files := newMemFileStore()
	docs := NewDocumentService(f.store, f.store.Loans(), f.store.Documents(), files, f.audit)

	_, err := docs.Upload(f.ctx, a.borrower, loan.ID, UploadInput{})
	assert.ErrorIs(t, err, ErrNoFile)

	big := upload("big.pdf", "x")
	big.Size = storage.MaxUploadSize + 1
	_, err = docs.Upload(f.ctx, a.borrower, loan.ID, big)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	files.saveErr = storage.ErrTooLarge
	_, err = docs.Upload(f.ctx, a.borrower, loan.ID, upload("sneaky.pdf", "x"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = docs.Upload(f.ctx, a.borrower, "missing", upload("a.pdf", "x"))
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestDocumentService_FinalizedLoanStaffOnly(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)
	_, err := f.loans.SetStatus(f.ctx, a.lender, loan.ID, SetStatusInput{Status: "CLOSED"})
	require.NoError(t, err)
	files := newMemFileStore()
	docs := NewDocumentService(f.store, f.store.Loans(), f.store.Documents(), files, f.audit)

	_, err = docs.Upload(f.ctx, a.borrower, loan.ID, upload("late.pdf", "x"))
	require.ErrorIs(t, err, domain.ErrFinalizedLoan)
	assert.Empty(t, files.files, "nothing is stored for a rejected upload")

	_, err = docs.Upload(f.ctx, a.lender, loan.ID, upload("closing.pdf", "x"))
	require.NoError(t, err)
}

func TestDocumentService_RemovesFileWhenMetadataFails(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)
	files := newMemFileStore()
	docs := NewDocumentService(f.store, f.store.Loans(), f.store.Documents(), files, NewAuditService(failingAuditRepo{}))

	_, err := docs.Upload(f.ctx, a.borrower, loan.ID, upload("paystub.pdf", "data"))
	require.ErrorIs(t, err, errAuditDown)

	assert.Empty(t, files.files)
	assert.Equal(t, []string{"/uploads/paystub.pdf"}, files.deleted)

	listed, err := f.store.Documents().ListByLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestNoteService(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	loan := f.submittedLoan(t, a.borrower)
	notes := NewNoteService(f.store, f.store.Loans(), f.store.Notes(), f.audit)

	_, err := notes.Create(f.ctx, a.borrower, loan.ID, CreateNoteInput{Content: "let me in"})
	require.ErrorIs(t, err, ErrNotesStaffOnly)
	_, err = notes.List(f.ctx, a.borrower, loan.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = notes.Create(f.ctx, a.lender, loan.ID, CreateNoteInput{Content: "   "})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = notes.Create(f.ctx, a.lender, loan.ID, CreateNoteInput{Content: "Called employer"})
	require.NoError(t, err)
	_, err = notes.Create(f.ctx, a.admin, loan.ID, CreateNoteInput{Content: "Appraisal ordered"})
	require.NoError(t, err)

	listed, err := notes.List(f.ctx, a.lender, loan.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Appraisal ordered", listed[0].Content)
	assert.NotEmpty(t, listed[0].AuthorName)

	assert.Len(t, f.auditEntries(t, domain.AuditNoteCreate), 2)

	_, err = notes.Create(f.ctx, a.lender, "missing", CreateNoteInput{Content: "x"})
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestSettingsService_Upsert(t *testing.T) {
	f := newFixture(t)
	admin := actorOf(f.addUser(t, "admin@platform.com", "Admin@123", domain.RoleSuperAdmin))
	settings := NewSettingsService(f.store, f.store.SystemConfigs(), f.audit)

	cfg, err := settings.Upsert(f.ctx, admin, UpsertSettingInput{Key: "max_dti", Value: "43"})
	require.NoError(t, err)
	assert.Equal(t, "Created via Admin Dashboard", cfg.Description)
	require.NotNil(t, cfg.UpdatedBy)
	assert.Equal(t, admin.ID, *cfg.UpdatedBy)

	_, err = settings.Upsert(f.ctx, admin, UpsertSettingInput{Key: "max_dti", Value: "45"})
	require.NoError(t, err)
	_, err = settings.Upsert(f.ctx, admin, UpsertSettingInput{Key: "banner", Value: "Welcome"})
	require.NoError(t, err)

	all, err := settings.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "banner", all[0].Key)
	assert.Equal(t, "45", all[1].Value)

	changes := f.auditEntries(t, domain.AuditSystemConfigChange)
	require.Len(t, changes, 3)
	// newest first
	assert.Equal(t, "43", changes[1].Metadata["previousValue"])
	assert.Equal(t, "45", changes[1].Metadata["newValue"])
	assert.Nil(t, changes[2].Metadata["previousValue"])

	_, err = settings.Upsert(f.ctx, admin, UpsertSettingInput{Key: " "})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDashboardService(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	first := f.submittedLoan(t, a.borrower)
	_, err := f.loans.Create(f.ctx, a.other, CreateLoanInput{LoanType: domain.LoanTypeRefinance, PropertyState: "CA", EstimatedValue: float(50000)})
	require.NoError(t, err)
	_, err = f.loans.SetStatus(f.ctx, a.lender, first.ID, SetStatusInput{Status: "UNDERWRITING"})
	require.NoError(t, err)

	dash := NewDashboardService(f.store, f.store.Users(), f.store.Loans(), f.metrics)
	stats, err := dash.AdminStats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalUsers)
	assert.Equal(t, int64(2), stats.TotalLoans)
	assert.Equal(t, 500000.0, stats.TotalVolume)
	assert.Equal(t, int64(1), stats.LoansByStatus["UNDERWRITING"])
	assert.Equal(t, int64(1), stats.LoansByStatus["DRAFT"])
	assert.Len(t, stats.LoansByStatus, len(domain.LoanStatuses))

	counts, err := dash.PipelineReport(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["UNDERWRITING"])
	assert.Zero(t, counts["CLOSED"])
}

type stubReporter struct {
	calls int
	err   error
}

func (s *stubReporter) PipelineReport(context.Context) (map[string]int64, error) {
	s.calls++
	return nil, s.err
}

func TestCronService(t *testing.T) {
	_, err := NewCronService(&stubReporter{}, "not a schedule")
	require.Error(t, err)

	reporter := &stubReporter{err: errors.New("db down")}
	svc, err := NewCronService(reporter, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultReportSchedule, svc.schedule)

	svc.RunPipelineReport()
	assert.Equal(t, 1, reporter.calls)

	svc.Start()
	svc.Stop()
}

func TestAuditService(t *testing.T) {
	f := newFixture(t)
	a := seedActors(t, f)
	f.submittedLoan(t, a.borrower)

	err := f.audit.Record(f.ctx, nil, "NOT_AN_ACTION", nil, "")
	assert.Error(t, err)

	entries, page, err := f.audit.List(f.ctx, AuditListInput{Page: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditLoanSubmit, entries[0].Action)
	assert.Equal(t, int64(2), page.Total)
	assert.True(t, page.HasNext)

	entries, _, err = f.audit.List(f.ctx, AuditListInput{Action: "LOAN_CREATE"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Test BORROWER", entries[0].UserName)

	_, _, err = f.audit.List(f.ctx, AuditListInput{Action: "BOGUS"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

var _ storage.FileStore = (*memFileStore)(nil)
