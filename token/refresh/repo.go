package refresh

import "context"

// Exchanger trades a refresh token for a new access token. The API client implements it
// against POST /auth/refresh.
type Exchanger interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

// ExchangerFunc adapts a function to Exchanger
type ExchangerFunc func(ctx context.Context, refreshToken string) (string, error)

func (f ExchangerFunc) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	return f(ctx, refreshToken)
}
