package token

import "context"

// Store persists the token pair across process restarts. Implementations must
// write and remove both tokens atomically: a concurrent Load never observes one
// token of a pair without the other.
type Store interface {
	// Load returns the stored pair, or an empty Pair when nothing is stored
	Load(ctx context.Context) (Pair, error)

	// Save replaces the stored pair
	Save(ctx context.Context, pair Pair) error

	// Clear removes both tokens
	Clear(ctx context.Context) error
}
