// Package memory is an in-process record store implementing every repository
// interface. It backs DB_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"mortgageos/internal/adapters/persistence/models"
	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/core/domain"
)

type txKey struct{}

type state struct {
	users   map[string]models.User
	loans   map[string]models.LoanApplication
	docs    map[string]models.Document
	notes   map[string]models.LoanNote
	audit   []models.AuditLog
	configs map[string]models.SystemConfig
}

func newState() state {
	return state{
		users:   map[string]models.User{},
		loans:   map[string]models.LoanApplication{},
		docs:    map[string]models.Document{},
		notes:   map[string]models.LoanNote{},
		configs: map[string]models.SystemConfig{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.docs {
		c.docs[k] = v
	}
	for k, v := range s.notes {
		c.notes[k] = v
	}
	c.audit = append([]models.AuditLog(nil), s.audit...)
	for k, v := range s.configs {
		c.configs[k] = v
	}
	return c
}

// Store holds all records. Transactions are serialized and roll back by
// restoring a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data state
	last time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: newState()}
}

// now returns a strictly increasing timestamp so newest-first ordering is
// stable. Callers hold mu.
func (s *Store) now() time.Time {
	t := time.Now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// WithinTransaction implements repositories.Transactor
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Users returns the user repository view
func (s *Store) Users() repositories.UserRepository { return userRepo{s} }

// Loans returns the loan repository view
func (s *Store) Loans() repositories.LoanRepository { return loanRepo{s} }

// Documents returns the document repository view
func (s *Store) Documents() repositories.DocumentRepository { return documentRepo{s} }

// Notes returns the note repository view
func (s *Store) Notes() repositories.NoteRepository { return noteRepo{s} }

// AuditLogs returns the audit repository view
func (s *Store) AuditLogs() repositories.AuditLogRepository { return auditRepo{s} }

// SystemConfigs returns the settings repository view
func (s *Store) SystemConfigs() repositories.SystemConfigRepository { return configRepo{s} }

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func contains(haystack, term string) bool {
	return strings.Contains(strings.ToLower(haystack), term)
}

func cloneForm(f domain.FormData) domain.FormData {
	var c domain.FormData
	if f.Property != nil {
		p := *f.Property
		c.Property = &p
	}
	if f.Personal != nil {
		p := *f.Personal
		c.Personal = &p
	}
	if f.Income != nil {
		i := *f.Income
		c.Income = &i
	}
	if f.Assets != nil {
		a := *f.Assets
		c.Assets = &a
	}
	return c
}

func cloneMetadata(m domain.Metadata) domain.Metadata {
	if m == nil {
		return nil
	}
	c := make(domain.Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// ============================================================
// Users
// ============================================================

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = domain.NormalizeEmail(user.Email)
	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.RoleBorrower
	}
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.data.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = domain.NormalizeEmail(email)
	for _, u := range r.s.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r userRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = domain.NormalizeEmail(email)
	for _, u := range r.s.data.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r userRepo) Update(ctx context.Context, user *models.User, fields ...string) error {
	if len(fields) == 0 {
		return fmt.Errorf("memory: update of user %s names no fields", user.ID)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.data.users[user.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Email = domain.NormalizeEmail(user.Email)

	for _, f := range fields {
		switch f {
		case repositories.UserEmail:
			for _, u := range r.s.data.users {
				if u.Email == user.Email && u.ID != user.ID {
					return repositories.ErrDuplicate
				}
			}
			stored.Email = user.Email
		case repositories.UserFirstName:
			stored.FirstName = user.FirstName
		case repositories.UserLastName:
			stored.LastName = user.LastName
		case repositories.UserPasswordHash:
			stored.PasswordHash = user.PasswordHash
		case repositories.UserRole:
			stored.Role = user.Role
		case repositories.UserStatus:
			stored.Status = user.Status
		case repositories.UserFailedAttempts:
			stored.FailedAttempts = user.FailedAttempts
		case repositories.UserLastLoginAt:
			if user.LastLoginAt != nil {
				at := *user.LastLoginAt
				stored.LastLoginAt = &at
			} else {
				stored.LastLoginAt = nil
			}
		default:
			return fmt.Errorf("memory: unknown user field %q", f)
		}
	}
	stored.UpdatedAt = r.s.now()
	user.UpdatedAt = stored.UpdatedAt
	r.s.data.users[user.ID] = stored
	return nil
}

// Delete cascades to owned loans, documents and notes and detaches audit entries
func (r userRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.data.users, id)

	for lid, l := range r.s.data.loans {
		if l.UserID == id {
			delete(r.s.data.loans, lid)
		}
	}
	for did, d := range r.s.data.docs {
		_, loanAlive := r.s.data.loans[d.LoanID]
		if d.UserID == id || !loanAlive {
			delete(r.s.data.docs, did)
		}
	}
	for nid, n := range r.s.data.notes {
		_, loanAlive := r.s.data.loans[n.LoanID]
		if n.UserID == id || !loanAlive {
			delete(r.s.data.notes, nid)
		}
	}
	for i := range r.s.data.audit {
		if uid := r.s.data.audit[i].UserID; uid != nil && *uid == id {
			r.s.data.audit[i].UserID = nil
		}
	}
	return nil
}

func (r userRepo) List(ctx context.Context, filter repositories.UserFilter) ([]*models.User, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []*models.User
	for _, u := range r.s.data.users {
		u := u
		if term != "" && !contains(u.Email, term) && !contains(u.FirstName, term) && !contains(u.LastName, term) {
			continue
		}
		matched = append(matched, &u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, filter.Offset, filter.Limit), int64(len(matched)), nil
}

func (r userRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.data.users)), nil
}

// ============================================================
// Loans
// ============================================================

type loanRepo struct{ s *Store }

func (r loanRepo) withUser(l models.LoanApplication) *models.LoanApplication {
	l.FormData = cloneForm(l.FormData)
	if u, ok := r.s.data.users[l.UserID]; ok {
		l.User = &u
	}
	return &l
}

func (r loanRepo) documentCount(loanID string) int64 {
	var n int64
	for _, d := range r.s.data.docs {
		if d.LoanID == loanID {
			n++
		}
	}
	return n
}

func (r loanRepo) Create(ctx context.Context, loan *models.LoanApplication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.users[loan.UserID]; !ok {
		return repositories.ErrNotFound
	}
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	if loan.Status == "" {
		loan.Status = domain.LoanDraft
	}
	now := r.s.now()
	loan.CreatedAt, loan.UpdatedAt = now, now

	stored := *loan
	stored.User = nil
	stored.FormData = cloneForm(loan.FormData)
	r.s.data.loans[loan.ID] = stored
	return nil
}

func (r loanRepo) GetByID(ctx context.Context, id string) (*models.LoanApplication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.data.loans[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return r.withUser(l), nil
}

func (r loanRepo) UpdateContent(ctx context.Context, loan *models.LoanApplication, expect domain.LoanStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.data.loans[loan.ID]
	if !ok || stored.Status != expect {
		return false, nil
	}
	stored.LoanType = loan.LoanType
	stored.PropertyState = loan.PropertyState
	stored.PropertyAddress = loan.PropertyAddress
	stored.PropertyCity = loan.PropertyCity
	stored.PropertyZip = loan.PropertyZip
	stored.EstimatedValue = cloneFloat(loan.EstimatedValue)
	stored.LoanAmount = cloneFloat(loan.LoanAmount)
	stored.FormData = cloneForm(loan.FormData)
	stored.UpdatedAt = r.s.now()

	loan.UpdatedAt = stored.UpdatedAt
	r.s.data.loans[loan.ID] = stored
	return true, nil
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (r loanRepo) TransitionStatus(ctx context.Context, t repositories.StatusTransition) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.data.loans[t.LoanID]
	if !ok || l.Status != t.From {
		return false, nil
	}
	l.Status = t.To
	l.UpdatedAt = t.At
	if t.SubmittedAt != nil {
		at := *t.SubmittedAt
		l.SubmittedAt = &at
	}
	r.s.data.loans[t.LoanID] = l
	return true, nil
}

func (r loanRepo) FindActiveByUser(ctx context.Context, userID string) (*models.LoanApplication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, l := range r.s.data.loans {
		if l.UserID == userID && !l.Status.IsTerminal() {
			return r.withUser(l), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r loanRepo) sorted(keep func(models.LoanApplication) bool, byUpdated bool) []*models.LoanApplication {
	var out []*models.LoanApplication
	for _, l := range r.s.data.loans {
		if !keep(l) {
			continue
		}
		loan := r.withUser(l)
		loan.DocumentCount = r.documentCount(l.ID)
		out = append(out, loan)
	}
	sort.Slice(out, func(i, j int) bool {
		if byUpdated {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r loanRepo) ListByUser(ctx context.Context, userID string) ([]*models.LoanApplication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	loans := r.sorted(func(l models.LoanApplication) bool { return l.UserID == userID }, true)
	for _, l := range loans {
		l.User = nil
	}
	return loans, nil
}

func (r loanRepo) ListPipeline(ctx context.Context, filter repositories.PipelineFilter) ([]*models.LoanApplication, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := r.sorted(func(l models.LoanApplication) bool {
		if l.Status == domain.LoanDraft {
			return false
		}
		if filter.Status != "" && l.Status != filter.Status {
			return false
		}
		if term == "" {
			return true
		}
		u, ok := r.s.data.users[l.UserID]
		return ok && (contains(u.Email, term) || contains(u.FirstName, term) || contains(u.LastName, term))
	}, true)
	return page(matched, filter.Offset, filter.Limit), int64(len(matched)), nil
}

func (r loanRepo) CountByStatus(ctx context.Context) (map[domain.LoanStatus]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := map[domain.LoanStatus]int64{}
	for _, l := range r.s.data.loans {
		counts[l.Status]++
	}
	return counts, nil
}

func (r loanRepo) Totals(ctx context.Context) (repositories.LoanTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var t repositories.LoanTotals
	for _, l := range r.s.data.loans {
		t.Total++
		if l.EstimatedValue != nil {
			t.Volume += *l.EstimatedValue
		}
	}
	return t, nil
}

// ============================================================
// Documents & notes
// ============================================================

type documentRepo struct{ s *Store }

func (r documentRepo) Create(ctx context.Context, doc *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.loans[doc.LoanID]; !ok {
		return repositories.ErrNotFound
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Type == "" {
		doc.Type = "GENERAL"
	}
	if doc.Status == "" {
		doc.Status = "PENDING"
	}
	doc.CreatedAt = r.s.now()
	r.s.data.docs[doc.ID] = *doc
	return nil
}

func (r documentRepo) ListByLoan(ctx context.Context, loanID string) ([]*models.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Document
	for _, d := range r.s.data.docs {
		d := d
		if d.LoanID == loanID {
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type noteRepo struct{ s *Store }

func (r noteRepo) Create(ctx context.Context, note *models.LoanNote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.loans[note.LoanID]; !ok {
		return repositories.ErrNotFound
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.CreatedAt = r.s.now()

	stored := *note
	stored.Author = nil
	r.s.data.notes[note.ID] = stored
	return nil
}

func (r noteRepo) ListByLoan(ctx context.Context, loanID string) ([]*models.LoanNote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.LoanNote
	for _, n := range r.s.data.notes {
		n := n
		if n.LoanID != loanID {
			continue
		}
		if u, ok := r.s.data.users[n.UserID]; ok {
			n.Author = &u
		}
		out = append(out, &n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ============================================================
// Audit log
// ============================================================

type auditRepo struct{ s *Store }

func (r auditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	entry.CreatedAt = r.s.now()

	stored := *entry
	stored.User = nil
	stored.Metadata = cloneMetadata(entry.Metadata)
	if entry.UserID != nil {
		uid := *entry.UserID
		stored.UserID = &uid
	}
	r.s.data.audit = append(r.s.data.audit, stored)
	return nil
}

func (r auditRepo) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditLog, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*models.AuditLog
	for i := len(r.s.data.audit) - 1; i >= 0; i-- {
		e := r.s.data.audit[i]
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.UserID != "" && (e.UserID == nil || *e.UserID != filter.UserID) {
			continue
		}
		e.Metadata = cloneMetadata(e.Metadata)
		if e.UserID != nil {
			if u, ok := r.s.data.users[*e.UserID]; ok {
				e.User = &u
			}
		}
		matched = append(matched, &e)
	}
	return page(matched, filter.Offset, filter.Limit), int64(len(matched)), nil
}

// ============================================================
// System configuration
// ============================================================

type configRepo struct{ s *Store }

func (r configRepo) List(ctx context.Context) ([]*models.SystemConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*models.SystemConfig, 0, len(r.s.data.configs))
	for _, c := range r.s.data.configs {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r configRepo) Get(ctx context.Context, key string) (*models.SystemConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.data.configs[key]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r configRepo) Upsert(ctx context.Context, cfg *models.SystemConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cfg.UpdatedAt = r.s.now()
	r.s.data.configs[cfg.Key] = *cfg
	return nil
}
