package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/core/domain"
)

const (
	borrowerEmail = "borrower@platform.com"
	borrowerPass  = "Pass@123"
)

func TestLogin_FailuresBelowThresholdOnlyCount(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, borrowerEmail, borrowerPass, domain.RoleBorrower)

	for n := 1; n < domain.MaxFailedAttempts; n++ {
		_, err := f.auth.Login(f.ctx, LoginInput{Email: borrowerEmail, Password: "wrong-password"}, "10.0.0.1")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)

		stored := f.reloadUser(t, user.ID)
		assert.Equal(t, n, stored.FailedAttempts)
		assert.Equal(t, domain.UserStatusActive, stored.Status)
	}
	assert.Len(t, f.auditEntries(t, domain.AuditUserLoginFailed), domain.MaxFailedAttempts-1)
}

func TestLogin_LocksOnFifthFailure(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, borrowerEmail, borrowerPass, domain.RoleBorrower)

	for i := 0; i < domain.MaxFailedAttempts; i++ {
		_, err := f.auth.Login(f.ctx, LoginInput{Email: borrowerEmail, Password: "wrong-password"}, "")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	stored := f.reloadUser(t, user.ID)
	assert.Equal(t, domain.MaxFailedAttempts, stored.FailedAttempts)
	assert.Equal(t, domain.UserStatusLocked, stored.Status)

	// Correct password no longer helps
	_, err := f.auth.Login(f.ctx, LoginInput{Email: borrowerEmail, Password: borrowerPass}, "")
	require.ErrorIs(t, err, domain.ErrAccountLocked)
	assert.Equal(t, domain.MaxFailedAttempts, f.reloadUser(t, user.ID).FailedAttempts)

	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 403, de.Status)
	assert.Equal(t, domain.CodeAccountLocked, de.Code)
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, borrowerEmail, borrowerPass, domain.RoleBorrower)

	for i := 0; i < 3; i++ {
		_, _ = f.auth.Login(f.ctx, LoginInput{Email: borrowerEmail, Password: "nope-nope"}, "")
	}
	require.Equal(t, 3, f.reloadUser(t, user.ID).FailedAttempts)

	session, err := f.auth.Login(f.ctx, LoginInput{Email: "  Borrower@Platform.com ", Password: borrowerPass}, "10.0.0.2")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	stored := f.reloadUser(t, user.ID)
	assert.Zero(t, stored.FailedAttempts)
	require.NotNil(t, stored.LastLoginAt)

	claims, ok := f.tokens.Verify(session.Token)
	require.True(t, ok)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, string(domain.RoleBorrower), claims.Role)

	logins := f.auditEntries(t, domain.AuditUserLogin)
	require.Len(t, logins, 1)
	assert.Equal(t, "10.0.0.2", logins[0].IPAddress)
}

func TestLogin_UnknownEmailIsGenericAndAudited(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Login(f.ctx, LoginInput{Email: "ghost@platform.com", Password: "whatever1"}, "")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	entries := f.auditEntries(t, domain.AuditUserLoginFailed)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UserID)
	assert.Equal(t, "UNKNOWN_EMAIL", entries[0].Metadata["reason"])
}

func TestLogin_SuspendedAccountRejected(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, borrowerEmail, borrowerPass, domain.RoleBorrower)
	user.Status = domain.UserStatusSuspended
	require.NoError(t, f.store.Users().Update(f.ctx, user, repositories.UserStatus))

	_, err := f.auth.Login(f.ctx, LoginInput{Email: borrowerEmail, Password: borrowerPass}, "")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
}

func TestLogin_KeepsStatusWrittenSinceRead(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, borrowerEmail, borrowerPass, domain.RoleBorrower)
	stale := *f.reloadUser(t, user.ID)

	user.Status = domain.UserStatusSuspended
	require.NoError(t, f.store.Users().Update(f.ctx, user, repositories.UserStatus))

	auth := NewAuthService(f.store, staleUsers{UserRepository: f.store.Users(), stale: stale}, f.audit, f.tokens, f.metrics)
	_, err := auth.Login(f.ctx, LoginInput{Email: borrowerEmail, Password: "wrong-pass"}, "")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	stored := f.reloadUser(t, user.ID)
	assert.Equal(t, domain.UserStatusSuspended, stored.Status)
	assert.Equal(t, 1, stored.FailedAttempts)
}

func TestLogin_InvalidInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.Login(f.ctx, LoginInput{Email: "not-an-email", Password: "x"}, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	user, err := f.auth.Register(f.ctx, RegisterInput{
		Email:     "New@Example.com",
		Password:  "longenough",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, domain.RoleBorrower, user.Role)
	assert.Equal(t, domain.UserStatusActive, user.Status)
	assert.Len(t, f.auditEntries(t, domain.AuditUserRegister), 1)

	_, err = f.auth.Register(f.ctx, RegisterInput{
		Email:     "NEW@example.com",
		Password:  "longenough",
		FirstName: "Ada",
		LastName:  "Again",
	}, "")
	require.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegister_ShortPassword(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.Register(f.ctx, RegisterInput{Email: "a@b.co", Password: "short", FirstName: "A", LastName: "B"}, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLogoutAndMe(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, borrowerEmail, borrowerPass, domain.RoleBorrower)

	require.NoError(t, f.auth.Logout(f.ctx, nil))
	assert.Empty(t, f.auditEntries(t, domain.AuditUserLogout))

	actor := actorOf(user)
	require.NoError(t, f.auth.Logout(f.ctx, &actor))
	assert.Len(t, f.auditEntries(t, domain.AuditUserLogout), 1)

	me, err := f.auth.Me(f.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, me.Email)

	_, err = f.auth.Me(f.ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
