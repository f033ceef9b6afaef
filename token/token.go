package token

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Pair is the access/refresh token pair issued by the API. The two tokens are
// always stored and cleared together.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether no access token is held
func (p Pair) Empty() bool {
	return strings.TrimSpace(p.AccessToken) == ""
}

// Valid reports whether the pair satisfies the storage invariant: an access token
// is only ever held together with a refresh token.
func (p Pair) Valid() bool {
	if p.Empty() {
		return strings.TrimSpace(p.RefreshToken) == ""
	}
	return strings.TrimSpace(p.RefreshToken) != ""
}

// WithAccessToken returns a copy of the pair with a rotated access token.
// The refresh endpoint only returns a new access token; the refresh token is kept.
func (p Pair) WithAccessToken(access string) Pair {
	return Pair{AccessToken: access, RefreshToken: p.RefreshToken}
}

// OAuth2 exposes the access token as a bearer oauth2.Token. The expiry is read from
// the JWT when it has one.
func (p Pair) OAuth2() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
	}
	if claims, err := Inspect(p.AccessToken); err == nil && claims.ExpiresAt != nil {
		t.Expiry = *claims.ExpiresAt
	}
	return t
}

// SetAuthHeader sets "Authorization: Bearer <access token>" on r
func (p Pair) SetAuthHeader(r *http.Request) {
	p.OAuth2().SetAuthHeader(r)
}

// SetBearer sets "Authorization: Bearer <raw>" on r for an arbitrary token, such as
// the refresh token on the refresh endpoint.
func SetBearer(r *http.Request, raw string) {
	(&oauth2.Token{AccessToken: raw, TokenType: "Bearer"}).SetAuthHeader(r)
}

// Redacted returns a loggable prefix of a token
func Redacted(raw string) string {
	if len(raw) <= 8 {
		return "***"
	}
	return raw[:8] + "..."
}
