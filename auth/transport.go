package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kiddiebus/kiddiebus-client/apiclient"
	"github.com/kiddiebus/kiddiebus-client/token"
)

// RefreshFunc returns a pair whose access token is newer than stale
type RefreshFunc func(ctx context.Context, stale string) (token.Pair, error)

// Transport attaches the stored access token to every request except the credential
// and refresh endpoints. When the API rejects the token (401 or 422) it waits for the
// shared refresh and re-issues the request once with the new token.
type Transport struct {
	Base    http.RoundTripper // http.DefaultTransport when nil
	Store   token.Store
	Refresh RefreshFunc
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if apiclient.IsTokenExempt(req.URL.Path) {
		return t.base().RoundTrip(req)
	}

	pair, err := t.Store.Load(req.Context())
	if err != nil {
		closeBody(req)
		return nil, fmt.Errorf("auth.Transport: loading tokens: %w", err)
	}

	first := req.Clone(req.Context())
	if pair.AccessToken != "" {
		pair.SetAuthHeader(first)
	}
	resp, err := t.base().RoundTrip(first)
	if err != nil || !apiclient.IsExpiredToken(resp.StatusCode) {
		return resp, err
	}

	// Without a refresh token there is no session to recover; the caller sees the 401.
	if pair.RefreshToken == "" || !replayable(req) {
		return resp, nil
	}
	drain(resp)

	fresh, err := t.Refresh(req.Context(), pair.AccessToken)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("auth.Transport: rewinding request body: %w", err)
		}
		retry.Body = body
	}
	fresh.SetAuthHeader(retry)
	return t.base().RoundTrip(retry)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
