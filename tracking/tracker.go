// Package tracking polls the position of the bus serving a selected student.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kiddiebus/kiddiebus-client/fleet"
	"github.com/kiddiebus/kiddiebus-client/internal/config"
	"github.com/kiddiebus/kiddiebus-client/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultInterval         = 30 * time.Second
	defaultDegradedInterval = 5 * time.Minute
	defaultFailureThreshold = 10
	defaultRouteCacheSize   = 64
	defaultRouteCacheTTL    = 5 * time.Minute
)

// ErrSuperseded is returned by Select when another Select or Stop ran before it finished
var ErrSuperseded = errors.New("tracking: selection superseded")

// API is the part of the REST client the tracker uses
type API interface {
	GetRoute(ctx context.Context, id int) (*fleet.Route, error)
	GetBus(ctx context.Context, id int) (*fleet.Bus, error)
}

// Tracker runs at most one polling loop, for the most recently selected student.
// Selecting a new student cancels the previous loop before anything else happens.
//
// Observers are called with the tracker's lock held so that nothing from a canceled
// subscription is delivered after Select or Stop returns. They must not call back
// into the Tracker.
type Tracker struct {
	api              API
	observer         Observer
	interval         time.Duration
	degradedInterval time.Duration
	failureThreshold int
	routes           *expirable.LRU[int, *fleet.Route]
	logger           zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	state   State
	current *Subscription

	wg     sync.WaitGroup
	active atomic.Int32
}

// TrackerOption defines a function type to modify the Tracker instance
type TrackerOption func(*Tracker)

func WithObserver(o Observer) TrackerOption {
	return func(t *Tracker) {
		t.observer = o
	}
}

// WithInterval sets the polling cadence
func WithInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.interval = d
	}
}

// WithDegradedPolicy: after threshold consecutive failures the loop polls every
// interval until a fetch succeeds.
func WithDegradedPolicy(threshold int, interval time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.failureThreshold = threshold
		t.degradedInterval = interval
	}
}

func WithRouteCache(size int, ttl time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.routes = expirable.NewLRU[int, *fleet.Route](size, nil, ttl)
	}
}

func WithLogger(l zerolog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = l
	}
}

// FromConfig applies the tracking settings from cfg
func FromConfig(cfg config.TrackingConfig) TrackerOption {
	return func(t *Tracker) {
		WithInterval(cfg.GetPollInterval())(t)
		WithDegradedPolicy(cfg.GetFailureThreshold(), cfg.GetDegradedInterval())(t)
		WithRouteCache(cfg.GetRouteCacheSize(), cfg.GetRouteCacheTTL())(t)
	}
}

func NewTracker(api API, options ...TrackerOption) *Tracker {
	t := &Tracker{
		api:              api,
		observer:         ObserverFunc(func(Update) {}),
		interval:         defaultInterval,
		degradedInterval: defaultDegradedInterval,
		failureThreshold: defaultFailureThreshold,
		logger:           log.Logger,
		state:            Idle,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.routes == nil {
		t.routes = expirable.NewLRU[int, *fleet.Route](defaultRouteCacheSize, nil, defaultRouteCacheTTL)
	}
	return t
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current returns a copy of the active subscription
func (t *Tracker) Current() (Subscription, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Subscription{}, false
	}
	return t.current.snapshot(), true
}

// Active is the number of polling loops still running. It is at most one once a
// canceled loop has observed its cancellation.
func (t *Tracker) Active() int {
	return int(t.active.Load())
}

// Select starts tracking the bus that serves student. A student without a route, or
// whose route has no bus, leaves the tracker Idle. ctx bounds the route lookup only;
// the polling loop runs until the next Select, Stop or Close.
func (t *Tracker) Select(ctx context.Context, student fleet.Student) (State, error) {
	gen := t.cancelCurrent()

	if !student.HasRoute() {
		t.settle(gen, Update{SubjectID: student.ID, State: Idle})
		return Idle, nil
	}

	route, err := t.route(ctx, *student.RouteID)
	if err != nil {
		t.logger.Warn().Err(err).Int("student_id", student.ID).Int("route_id", *student.RouteID).Msg("Failed to resolve route")
		if !t.settle(gen, Update{SubjectID: student.ID, State: Idle, Err: err}) {
			return Idle, ErrSuperseded
		}
		return Idle, fmt.Errorf("tracking.Select: %w", err)
	}

	busID, ok := route.AssignedBusID()
	if !ok {
		if !t.settle(gen, Update{SubjectID: student.ID, State: Idle, Route: route}) {
			return Idle, ErrSuperseded
		}
		return Idle, nil
	}

	if !t.start(gen, student, route, busID) {
		return Idle, ErrSuperseded
	}
	return Polling, nil
}

// Stop ends the current subscription. Nothing from it is delivered after Stop returns.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Close stops tracking and waits for the polling loop to exit
func (t *Tracker) Close() {
	t.Stop()
	t.wg.Wait()
}

func (t *Tracker) cancelCurrent() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	return t.gen
}

func (t *Tracker) stopLocked() {
	t.gen++
	if t.current == nil {
		return
	}
	t.current.cancel()
	subject := t.current.SubjectID
	t.current = nil
	t.state = Stopped
	t.observer.OnUpdate(Update{SubjectID: subject, State: Stopped})
}

// settle records a terminal Idle outcome for generation gen
func (t *Tracker) settle(gen uint64, u Update) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return false
	}
	t.state = u.State
	t.observer.OnUpdate(u)
	return true
}

func (t *Tracker) route(ctx context.Context, id int) (*fleet.Route, error) {
	if r, ok := t.routes.Get(id); ok {
		cp := *r
		return &cp, nil
	}
	r, err := t.api.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	cached := *r
	t.routes.Add(id, &cached)
	return r, nil
}

func (t *Tracker) start(gen uint64, student fleet.Student, route *fleet.Route, busID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		SubjectID: student.ID,
		RouteID:   &route.ID,
		BusID:     &busID,
		cancel:    cancel,
	}
	t.current = sub
	t.state = Polling
	t.observer.OnUpdate(Update{SubjectID: student.ID, State: Polling, Route: route})

	t.wg.Add(1)
	t.active.Add(1)
	metrics.ActivePollers.Inc()
	go t.poll(ctx, gen, sub, busID)

	t.logger.Info().Int("student_id", student.ID).Int("route_id", route.ID).Int("bus_id", busID).Msg("Tracking started")
	return true
}

func (t *Tracker) poll(ctx context.Context, gen uint64, sub *Subscription, busID int) {
	defer t.wg.Done()
	defer t.active.Add(-1)
	defer metrics.ActivePollers.Dec()

	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		failures = t.fetch(ctx, gen, sub, busID, failures)

		wait := t.interval
		if t.failureThreshold > 0 && failures >= t.failureThreshold {
			wait = t.degradedInterval
		}
		timer.Reset(wait)
	}
}

// fetch polls once and returns the updated count of consecutive failures
func (t *Tracker) fetch(ctx context.Context, gen uint64, sub *Subscription, busID int, failures int) int {
	bus, err := t.api.GetBus(ctx, busID)
	if ctx.Err() != nil {
		return failures
	}
	metrics.RecordPoll(err)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return failures
	}

	if err != nil {
		failures++
		t.logger.Warn().Err(err).Int("bus_id", busID).Int("consecutive_failures", failures).Msg("Location poll failed")
		if failures == t.failureThreshold {
			t.state = Degraded
			t.logger.Warn().Int("bus_id", busID).Dur("interval", t.degradedInterval).Msg("Bus unreachable, polling less often")
			t.observer.OnUpdate(Update{SubjectID: sub.SubjectID, State: Degraded, Err: err})
		}
		return failures
	}

	if t.state == Degraded {
		t.logger.Info().Int("bus_id", busID).Msg("Bus reachable again, resuming normal polling")
	}
	now := time.Now()
	sub.LastFetchedAt = &now
	t.state = Polling
	snap := bus.Snapshot()
	t.observer.OnUpdate(Update{SubjectID: sub.SubjectID, State: Polling, Snapshot: &snap})
	return 0
}
