package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kiddiebus/kiddiebus-client/fleet"
	kberrors "github.com/kiddiebus/kiddiebus-client/internal/errors"
	"github.com/kiddiebus/kiddiebus-client/token"
	"github.com/kiddiebus/kiddiebus-client/users"
)

// AuthResponse is returned by the login, register and google endpoints
type AuthResponse struct {
	User         *users.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
}

func (r AuthResponse) Pair() token.Pair {
	return token.Pair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

func (r *AuthResponse) validate(path string) error {
	if r.User == nil || r.AccessToken == "" || r.RefreshToken == "" {
		return fmt.Errorf("%w: %s: incomplete auth response", kberrors.ErrInternal, path)
	}
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, RouteAuthLogin, credentials{Email: email, Password: password}, &out, nil); err != nil {
		return nil, err
	}
	if err := out.validate(RouteAuthLogin); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, reg users.Registration) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, RouteAuthRegister, reg, &out, nil); err != nil {
		return nil, err
	}
	if err := out.validate(RouteAuthRegister); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleLogin exchanges a Google Identity Services credential (an ID token)
func (c *Client) GoogleLogin(ctx context.Context, credential string) (*AuthResponse, error) {
	var out AuthResponse
	in := struct {
		Credential string `json:"credential"`
	}{credential}
	if err := c.do(ctx, http.MethodPost, RouteAuthGoogle, in, &out, nil); err != nil {
		return nil, err
	}
	if err := out.validate(RouteAuthGoogle); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshAccessToken calls POST /auth/refresh with the refresh token as bearer. The
// server returns only a new access token; the refresh token stays valid.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+refreshToken)

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, RouteAuthRefresh, nil, &out, header); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: %s: no access token in response", kberrors.ErrInternal, RouteAuthRefresh)
	}
	return out.AccessToken, nil
}

type userEnvelope struct {
	User *users.User `json:"user"`
}

func (e userEnvelope) unwrap(path string) (*users.User, error) {
	if e.User == nil {
		return nil, fmt.Errorf("%w: %s: no user in response", kberrors.ErrInternal, path)
	}
	return e.User, nil
}

func (c *Client) Me(ctx context.Context) (*users.User, error) {
	var out userEnvelope
	if err := c.do(ctx, http.MethodGet, RouteAuthMe, nil, &out, nil); err != nil {
		return nil, err
	}
	return out.unwrap(RouteAuthMe)
}

func (c *Client) UpdateMe(ctx context.Context, update users.ProfileUpdate) (*users.User, error) {
	var out userEnvelope
	if err := c.do(ctx, http.MethodPut, RouteAuthMe, update, &out, nil); err != nil {
		return nil, err
	}
	return out.unwrap(RouteAuthMe)
}

func (c *Client) GetBus(ctx context.Context, id int) (*fleet.Bus, error) {
	path := RouteBus(id)
	var out struct {
		Bus *fleet.Bus `json:"bus"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	if out.Bus == nil {
		return nil, fmt.Errorf("%w: %s: no bus in response", kberrors.ErrNotFound, path)
	}
	return out.Bus, nil
}

func (c *Client) GetRoute(ctx context.Context, id int) (*fleet.Route, error) {
	path := RouteRoute(id)
	var out struct {
		Route *fleet.Route `json:"route"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	if out.Route == nil {
		return nil, fmt.Errorf("%w: %s: no route in response", kberrors.ErrNotFound, path)
	}
	return out.Route, nil
}

// ListStudents returns the students visible to the caller; parents only see their own children
func (c *Client) ListStudents(ctx context.Context) ([]fleet.Student, error) {
	var out struct {
		Students []fleet.Student `json:"students"`
	}
	if err := c.do(ctx, http.MethodGet, RouteStudents, nil, &out, nil); err != nil {
		return nil, err
	}
	return out.Students, nil
}
