package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSignAndVerify(t *testing.T) {
	m, err := NewManager("test-secret")
	require.NoError(t, err)

	token, issued, err := m.Sign("user-1", "BORROWER")
	require.NoError(t, err)
	assert.Equal(t, SessionLifetime, issued.ExpiresAt.Sub(issued.IssuedAt.Time))

	claims, ok := m.Verify(token)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "BORROWER", claims.Role)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestVerifyExpiry(t *testing.T) {
	issuedAt := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	m, err := NewManager("test-secret")
	require.NoError(t, err)

	token, _, err := m.WithClock(fixedClock(issuedAt)).Sign("user-1", "LENDER")
	require.NoError(t, err)

	_, ok := m.WithClock(fixedClock(issuedAt.Add(7*time.Hour + 59*time.Minute))).Verify(token)
	assert.True(t, ok, "token should be valid just before 8h")

	_, ok = m.WithClock(fixedClock(issuedAt.Add(8*time.Hour + time.Second))).Verify(token)
	assert.False(t, ok, "token should be invalid after 8h")
}

func TestVerifyRejects(t *testing.T) {
	m, err := NewManager("test-secret")
	require.NoError(t, err)
	other, err := NewManager("other-secret")
	require.NoError(t, err)

	valid, _, err := m.Sign("user-1", "BORROWER")
	require.NoError(t, err)

	foreign, _, err := other.Sign("user-1", "BORROWER")
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    Issuer,
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tampered := []byte(valid)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"tampered":       string(tampered),
		"wrong secret":   foreign,
		"wrong alg":      hs512,
		"missing expiry": noExpiry,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := m.Verify(token)
			assert.False(t, ok)
		})
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
