// Package identity verifies third-party ID tokens (Google Identity Services
// credentials) before they are sent to the API.
package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/kiddiebus/kiddiebus-client/internal/errors"
)

const GoogleIssuer = "https://accounts.google.com"

// Identity is the subset of ID token claims the client cares about
type Identity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

type Verifier struct {
	issuer   string
	verifier *oidc.IDTokenVerifier
}

// New discovers the issuer's signing keys and returns a verifier for tokens issued to clientID
func New(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("identity.New: client id is required")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("identity.New: discovering %s: %w", issuer, err)
	}
	return &Verifier{
		issuer:   issuer,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// NewWithKeySet builds a verifier from a known key set without discovery
func NewWithKeySet(issuer, clientID string, keys oidc.KeySet) *Verifier {
	return &Verifier{
		issuer:   issuer,
		verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID}),
	}
}

// Verify checks the signature, issuer, audience and expiry of raw. Any failure is an
// authentication error.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: verifying %s id token: %w", errors.ErrAuthentication, v.issuer, err)
	}

	var id Identity
	if err := idToken.Claims(&id); err != nil {
		return nil, fmt.Errorf("%w: decoding id token claims: %w", errors.ErrAuthentication, err)
	}
	if id.Subject == "" {
		id.Subject = idToken.Subject
	}
	return &id, nil
}
