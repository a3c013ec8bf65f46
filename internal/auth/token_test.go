package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret: "test-secret-key-that-is-long-enough",
		Issuer: "accounts",
		TTL: map[Purpose]time.Duration{
			PurposeAccess:  15 * time.Minute,
			PurposeRefresh: 7 * 24 * time.Hour,
			PurposeReset:   10 * time.Minute,
		},
	}
}

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	i, err := NewTokenIssuer(testTokenConfig())
	require.NoError(t, err)
	return i
}

func TestNewTokenIssuer_Misconfigured(t *testing.T) {
	cfg := testTokenConfig()
	cfg.Secret = ""
	_, err := NewTokenIssuer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret is required")

	cfg = testTokenConfig()
	delete(cfg.TTL, PurposeReset)
	_, err = NewTokenIssuer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset token TTL")

	cfg = testTokenConfig()
	cfg.TTL[PurposeAccess] = 0
	_, err = NewTokenIssuer(cfg)
	require.Error(t, err)
}

func TestNewTokenIssuer_CopiesTTL(t *testing.T) {
	cfg := testTokenConfig()
	i, err := NewTokenIssuer(cfg)
	require.NoError(t, err)

	cfg.TTL[PurposeAccess] = time.Nanosecond
	assert.Equal(t, 15*time.Minute, i.ttl[PurposeAccess])
}

func TestIssue_OneTokenPerPurpose(t *testing.T) {
	i := newTestIssuer(t)

	tokens, err := i.Issue("user-1", PurposeAccess, PurposeRefresh)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.NotEqual(t, tokens[PurposeAccess], tokens[PurposeRefresh])

	claims, err := i.Parse(tokens[PurposeAccess], PurposeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "accounts", claims.Issuer)
	assert.Equal(t, PurposeAccess, claims.Purpose)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)

	claims, err = i.Parse(tokens[PurposeRefresh], PurposeRefresh)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestIssueStamped_CarriesStamp(t *testing.T) {
	i := newTestIssuer(t)

	tests := []struct {
		name  string
		stamp string
	}{
		{name: "stamped", stamp: "0a1b2c3d4e5f6071"},
		{name: "unstamped", stamp: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := i.IssueStamped("user-1", tt.stamp, PurposeReset)
			require.NoError(t, err)

			claims, err := i.Parse(tokens[PurposeReset], PurposeReset)
			require.NoError(t, err)
			assert.Equal(t, tt.stamp, claims.Stamp)
		})
	}
}

func TestIssue_UnknownPurpose(t *testing.T) {
	_, err := newTestIssuer(t).Issue("user-1", Purpose("admin"))
	require.Error(t, err)
}

func TestParse_WrongPurpose(t *testing.T) {
	i := newTestIssuer(t)
	tokens, err := i.Issue("user-1", PurposeRefresh)
	require.NoError(t, err)

	_, err = i.Parse(tokens[PurposeRefresh], PurposeAccess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPurposeMismatch))
}

func TestParse_Expired(t *testing.T) {
	i := newTestIssuer(t)
	i.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tokens, err := i.Issue("user-1", PurposeAccess)
	require.NoError(t, err)

	i.now = time.Now
	_, err = i.Parse(tokens[PurposeAccess], PurposeAccess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestParse_WrongSecret(t *testing.T) {
	tokens, err := newTestIssuer(t).Issue("user-1", PurposeAccess)
	require.NoError(t, err)

	cfg := testTokenConfig()
	cfg.Secret = "another-secret"
	other, err := NewTokenIssuer(cfg)
	require.NoError(t, err)

	_, err = other.Parse(tokens[PurposeAccess], PurposeAccess)
	require.Error(t, err)
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		UserID:  "user-1",
		Purpose: PurposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestIssuer(t).Parse(unsigned, PurposeAccess)
	require.Error(t, err)
}

func TestParse_Garbage(t *testing.T) {
	_, err := newTestIssuer(t).Parse("not.a.jwt", PurposeAccess)
	require.Error(t, err)
}
