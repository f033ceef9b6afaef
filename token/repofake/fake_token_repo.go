package tokenfakerepo

import (
	"context"
	"errors"
	"sync"

	"github.com/kiddiebus/kiddiebus-client/token"
)

var _ token.Store = (*FakeTokenStore)(nil)

// FakeTokenStore is an in-memory token.Store. It is also used by embedders that
// don't want tokens to outlive the process.
type FakeTokenStore struct {
	pair   token.Pair
	saves  int
	clears int
	failOn error
	lock   sync.RWMutex
}

func NewFakeTokenStore() *FakeTokenStore {
	return &FakeTokenStore{}
}

// NewFakeTokenStoreWith returns a store pre-populated with pair
func NewFakeTokenStoreWith(pair token.Pair) *FakeTokenStore {
	return &FakeTokenStore{pair: pair}
}

func (ts *FakeTokenStore) Load(_ context.Context) (token.Pair, error) {
	ts.lock.RLock()
	defer ts.lock.RUnlock()
	if ts.failOn != nil {
		return token.Pair{}, ts.failOn
	}
	return ts.pair, nil
}

func (ts *FakeTokenStore) Save(_ context.Context, pair token.Pair) error {
	if !pair.Valid() {
		return errors.New("refusing to store an incomplete token pair")
	}

	ts.lock.Lock()
	defer ts.lock.Unlock()
	if ts.failOn != nil {
		return ts.failOn
	}
	ts.pair = pair
	ts.saves++
	return nil
}

func (ts *FakeTokenStore) Clear(_ context.Context) error {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	if ts.failOn != nil {
		return ts.failOn
	}
	ts.pair = token.Pair{}
	ts.clears++
	return nil
}

// FailWith makes Load, Save and Clear return err until called again with nil
func (ts *FakeTokenStore) FailWith(err error) {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	ts.failOn = err
}

func (ts *FakeTokenStore) Saves() int {
	ts.lock.RLock()
	defer ts.lock.RUnlock()
	return ts.saves
}

func (ts *FakeTokenStore) Clears() int {
	ts.lock.RLock()
	defer ts.lock.RUnlock()
	return ts.clears
}
