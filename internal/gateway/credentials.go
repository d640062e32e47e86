// ABOUTME: Credential freshness checks for push-channel (re)connects
// ABOUTME: Inspects JWT expiry without verifying the server's signature

package gateway

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialSource supplies and refreshes the bearer token used to
// authenticate the push channel.
type CredentialSource interface {
	// Token returns the current credential.
	Token(ctx context.Context) (string, error)
	// Refresh obtains a new credential, invalidating the old one.
	Refresh(ctx context.Context) (string, error)
}

// expiryGrace forces a refresh when the token would expire this close
// to the reconnect, so the handshake does not race the expiry.
const expiryGrace = 30 * time.Second

// credentialStale reports whether the token is expired or about to
// expire. The signature is not verified here; the server does that on
// connect. Tokens that do not parse as JWTs or carry no expiry are
// treated as non-expiring.
func credentialStale(token string, now time.Time) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Add(expiryGrace).Before(exp.Time)
}

// freshToken returns a usable credential for a (re)connect, refreshing
// through the source only when the current one is stale.
func freshToken(ctx context.Context, src CredentialSource, current string, now time.Time) (string, error) {
	if current != "" && !credentialStale(current, now) {
		return current, nil
	}
	if current == "" {
		tok, err := src.Token(ctx)
		if err != nil {
			return "", err
		}
		if !credentialStale(tok, now) {
			return tok, nil
		}
	}
	return src.Refresh(ctx)
}
