// ABOUTME: Tests for credential staleness and refresh-on-reconnect
// ABOUTME: Uses locally signed JWTs to exercise expiry inspection

package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": expiresAt.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestCredentialStale(t *testing.T) {
	now := time.Now()

	assert.True(t, credentialStale(signedToken(t, now.Add(-time.Hour)), now), "expired token")
	assert.True(t, credentialStale(signedToken(t, now.Add(10*time.Second)), now), "expiring inside the grace window")
	assert.False(t, credentialStale(signedToken(t, now.Add(time.Hour)), now), "fresh token")
	assert.False(t, credentialStale("not-a-jwt", now), "opaque tokens never go stale")
}

func TestFreshToken_ReusesFreshCredential(t *testing.T) {
	now := time.Now()
	creds := &fakeCreds{token: "unused"}
	current := signedToken(t, now.Add(time.Hour))

	got, err := freshToken(context.Background(), creds, current, now)
	require.NoError(t, err)
	assert.Equal(t, current, got)
	assert.Equal(t, 0, creds.refreshes)
}

func TestFreshToken_RefreshesStaleCredential(t *testing.T) {
	now := time.Now()
	creds := &fakeCreds{token: "base"}
	current := signedToken(t, now.Add(-time.Minute))

	got, err := freshToken(context.Background(), creds, current, now)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-base", got)
	assert.Equal(t, 1, creds.refreshes)
}

func TestFreshToken_FirstConnectUsesSource(t *testing.T) {
	creds := &fakeCreds{token: "first"}

	got, err := freshToken(context.Background(), creds, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "first", got)
	assert.Equal(t, 0, creds.refreshes)
}

func TestFreshToken_FirstConnectRefreshesExpiredSourceToken(t *testing.T) {
	now := time.Now()
	creds := &fakeCreds{token: signedToken(t, now.Add(-time.Hour))}

	got, err := freshToken(context.Background(), creds, "", now)
	require.NoError(t, err)
	assert.Equal(t, 1, creds.refreshes)
	assert.Contains(t, got, "refreshed-")
}
