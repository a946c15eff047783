package jwt

import (
	"strings"
	"sync"
	"testing"
	"time"

	"user_service/internal/models"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var testAccount = models.Account{
	ID:    42,
	Name:  "Ada",
	Email: "ada@example.com",
	Role:  models.RoleAdmin,
}

func newTestIssuer(t *testing.T, opts ...Option) *Issuer {
	t.Helper()

	i, err := NewIssuer(Config{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, opts...)
	require.NoError(t, err)

	return i
}

func TestNewIssuer_Secrets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "missing access secret",
			cfg:     Config{RefreshSecret: "r", AccessTTL: time.Minute, RefreshTTL: time.Hour},
			wantErr: ErrMissingSecret,
		},
		{
			name:    "missing refresh secret",
			cfg:     Config{AccessSecret: "a", AccessTTL: time.Minute, RefreshTTL: time.Hour},
			wantErr: ErrMissingSecret,
		},
		{
			name:    "shared secret",
			cfg:     Config{AccessSecret: "same", RefreshSecret: "same", AccessTTL: time.Minute, RefreshTTL: time.Hour},
			wantErr: ErrSharedSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIssuer(tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t)

	token, expiresAt, err := i.NewAccessToken(testAccount)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 2*time.Second)

	identity, err := i.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: 42, Email: "ada@example.com", Role: models.RoleAdmin, Name: "Ada"}, identity)
}

func TestAccessToken_TTLBoundary(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: issuedAt}
	i := newTestIssuer(t, WithClock(clock.Now))

	token, expiresAt, err := i.NewAccessToken(testAccount)
	require.NoError(t, err)
	require.Equal(t, issuedAt.Add(15*time.Minute), expiresAt)

	clock.Set(expiresAt.Add(-time.Second))
	_, err = i.ParseAccessToken(token)
	require.NoError(t, err)

	clock.Set(expiresAt.Add(time.Second))
	_, err = i.ParseAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t)

	token, expiresAt, err := i.NewRefreshToken(testAccount)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expiresAt, 2*time.Second)

	claims, err := i.ParseRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "refresh", claims.Type)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshToken_SameSecondTokensDiffer(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	i := newTestIssuer(t, WithClock(clock.Now))

	first, _, err := i.NewRefreshToken(testAccount)
	require.NoError(t, err)
	second, _, err := i.NewRefreshToken(testAccount)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t)

	access, _, err := i.NewAccessToken(testAccount)
	require.NoError(t, err)
	refresh, _, err := i.NewRefreshToken(testAccount)
	require.NoError(t, err)

	_, err = i.ParseAccessToken(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = i.ParseRefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParse_RejectsForgedTokens(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t)

	token, _, err := i.NewAccessToken(testAccount)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	other := newTestIssuerWithSecrets(t, "another-access-secret", "another-refresh-secret")
	foreign, _, err := other.NewAccessToken(testAccount)
	require.NoError(t, err)

	unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, AccessClaims{
		UserID: 42,
		Role:   models.RoleAdmin,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "tampered signature", token: parts[0] + "." + parts[1] + ".AAAA"},
		{name: "signed with another secret", token: foreign},
		{name: "alg none", token: unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := i.ParseAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
			assert.NotErrorIs(t, err, ErrTokenExpired)
		})
	}
}

func newTestIssuerWithSecrets(t *testing.T, access, refresh string) *Issuer {
	t.Helper()

	i, err := NewIssuer(Config{
		AccessSecret:  access,
		RefreshSecret: refresh,
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	return i
}
