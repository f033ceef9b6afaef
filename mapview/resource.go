package mapview

import (
	"context"
	"sync"

	"github.com/kiddiebus/kiddiebus-client/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type loadCall struct {
	done chan struct{}
	lib  Library
	err  error
}

// Resource is the shared handle on the mapping library. Every consumer that asks
// for it while a load is in progress waits on that same load; once loaded, the
// library is kept for the life of the process. A failed load is not remembered.
type Resource struct {
	load   Loader
	logger zerolog.Logger

	mu      sync.Mutex
	lib     Library
	pending *loadCall
}

type ResourceOption func(*Resource)

func WithResourceLogger(l zerolog.Logger) ResourceOption {
	return func(r *Resource) {
		r.logger = l
	}
}

func NewResource(load Loader, options ...ResourceOption) *Resource {
	r := &Resource{load: load, logger: log.Logger}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Acquire returns the library, loading it if needed. Canceling ctx abandons this
// caller's wait only; the load carries on for everyone else.
func (r *Resource) Acquire(ctx context.Context) (Library, error) {
	r.mu.Lock()
	if r.lib != nil {
		lib := r.lib
		r.mu.Unlock()
		return lib, nil
	}
	call := r.pending
	if call == nil {
		call = &loadCall{done: make(chan struct{})}
		r.pending = call
		go r.run(context.WithoutCancel(ctx), call)
	}
	r.mu.Unlock()

	select {
	case <-call.done:
		return call.lib, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loaded reports whether the library is ready without waiting
func (r *Resource) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lib != nil
}

func (r *Resource) run(ctx context.Context, call *loadCall) {
	r.logger.Debug().Msg("Loading map library")
	lib, err := r.load(ctx)
	metrics.RecordMapLoad(err)
	if err != nil {
		r.logger.Err(err).Msg("Map library failed to load")
	}

	r.mu.Lock()
	if err == nil {
		r.lib = lib
	}
	r.pending = nil
	r.mu.Unlock()

	call.lib, call.err = lib, err
	close(call.done)
}
