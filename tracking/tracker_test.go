package tracking_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kiddiebus/kiddiebus-client/fleet"
	"github.com/kiddiebus/kiddiebus-client/internal/errors"
	"github.com/kiddiebus/kiddiebus-client/internal/utils"
	"github.com/kiddiebus/kiddiebus-client/tracking"
	"github.com/stretchr/testify/require"
)

const (
	eventuallyTimeout = 2 * time.Second
	tick              = 2 * time.Millisecond
)

// fakeFleet serves routes and buses from memory and counts every call
type fakeFleet struct {
	mu         sync.Mutex
	routes     map[int]fleet.Route
	buses      map[int]fleet.Bus
	failBus    map[int]int // remaining failures per bus, -1 for forever
	routeCalls map[int]int
	busCalls   map[int]int
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{
		routes:     make(map[int]fleet.Route),
		buses:      make(map[int]fleet.Bus),
		failBus:    make(map[int]int),
		routeCalls: make(map[int]int),
		busCalls:   make(map[int]int),
	}
}

func (f *fakeFleet) addBus(id int, lat, lng float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buses[id] = fleet.Bus{
		ID:                 id,
		RegistrationNumber: fmt.Sprintf("KB-%d", id),
		CurrentLocation:    &fleet.Location{Latitude: &lat, Longitude: &lng},
	}
}

func (f *fakeFleet) addRoute(id int, busID *int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[id] = fleet.Route{ID: id, Name: fmt.Sprintf("Route %d", id), BusID: busID}
}

func (f *fakeFleet) failBusCalls(id, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failBus[id] = n
}

func (f *fakeFleet) GetRoute(_ context.Context, id int) (*fleet.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routeCalls[id]++
	r, ok := f.routes[id]
	if !ok {
		return nil, fmt.Errorf("route %d: %w", id, errors.ErrNotFound)
	}
	return &r, nil
}

func (f *fakeFleet) GetBus(_ context.Context, id int) (*fleet.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busCalls[id]++
	if n := f.failBus[id]; n != 0 {
		if n > 0 {
			f.failBus[id] = n - 1
		}
		return nil, fmt.Errorf("bus %d: %w", id, errors.ErrTransientNetwork)
	}
	b, ok := f.buses[id]
	if !ok {
		return nil, fmt.Errorf("bus %d: %w", id, errors.ErrNotFound)
	}
	return &b, nil
}

func (f *fakeFleet) calls() (routes, buses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.routeCalls {
		routes += n
	}
	for _, n := range f.busCalls {
		buses += n
	}
	return routes, buses
}

func (f *fakeFleet) busCallsFor(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busCalls[id]
}

// recorder collects observer updates
type recorder struct {
	mu      sync.Mutex
	updates []tracking.Update
}

func (r *recorder) OnUpdate(u tracking.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []tracking.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracking.Update(nil), r.updates...)
}

func (r *recorder) snapshotsFor(busID int) int {
	n := 0
	for _, u := range r.all() {
		if u.Snapshot != nil && u.Snapshot.BusID == busID {
			n++
		}
	}
	return n
}

func (r *recorder) hasState(s tracking.State) bool {
	for _, u := range r.all() {
		if u.State == s {
			return true
		}
	}
	return false
}

func student(id int, routeID *int) fleet.Student {
	return fleet.Student{ID: id, FullName: fmt.Sprintf("Student %d", id), RouteID: routeID}
}

func newTracker(t *testing.T, api tracking.API, options ...tracking.TrackerOption) (*tracking.Tracker, *recorder) {
	t.Helper()
	rec := &recorder{}
	options = append([]tracking.TrackerOption{
		tracking.WithObserver(rec),
		tracking.WithInterval(10 * time.Millisecond),
	}, options...)
	tr := tracking.NewTracker(api, options...)
	t.Cleanup(tr.Close)
	return tr, rec
}

func TestSelect_NoRouteStaysIdleWithoutNetwork(t *testing.T) {
	api := newFakeFleet()
	tr, rec := newTracker(t, api)

	state, err := tr.Select(context.Background(), student(1, nil))
	require.NoError(t, err)
	require.Equal(t, tracking.Idle, state)
	require.Equal(t, tracking.Idle, tr.State())

	routes, buses := api.calls()
	require.Zero(t, routes)
	require.Zero(t, buses)
	require.Zero(t, tr.Active())
	require.Equal(t, []tracking.Update{{SubjectID: 1, State: tracking.Idle}}, rec.all())
}

func TestSelect_RouteWithoutBusStaysIdle(t *testing.T) {
	api := newFakeFleet()
	api.addRoute(5, nil)
	tr, rec := newTracker(t, api)

	state, err := tr.Select(context.Background(), student(1, utils.Ptr(5)))
	require.NoError(t, err)
	require.Equal(t, tracking.Idle, state)

	_, buses := api.calls()
	require.Zero(t, buses)
	updates := rec.all()
	require.Len(t, updates, 1)
	require.Equal(t, 5, updates[0].Route.ID)
}

func TestSelect_UnknownRoute(t *testing.T) {
	api := newFakeFleet()
	tr, _ := newTracker(t, api)

	state, err := tr.Select(context.Background(), student(1, utils.Ptr(404)))
	require.ErrorIs(t, err, errors.ErrNotFound)
	require.Equal(t, tracking.Idle, state)
	require.Zero(t, tr.Active())
}

func TestSelect_PollsImmediatelyThenOnInterval(t *testing.T) {
	api := newFakeFleet()
	api.addBus(3, 18.04, -77.5)
	api.addRoute(5, utils.Ptr(3))
	tr, rec := newTracker(t, api)

	state, err := tr.Select(context.Background(), student(1, utils.Ptr(5)))
	require.NoError(t, err)
	require.Equal(t, tracking.Polling, state)

	require.Eventually(t, func() bool { return rec.snapshotsFor(3) >= 3 }, eventuallyTimeout, tick)

	sub, ok := tr.Current()
	require.True(t, ok)
	require.Equal(t, 1, sub.SubjectID)
	require.Equal(t, 3, *sub.BusID)
	require.Equal(t, 5, *sub.RouteID)
	require.NotNil(t, sub.LastFetchedAt)

	first := rec.all()[0]
	require.Equal(t, tracking.Polling, first.State)
	require.Equal(t, "Route 5", first.Route.Name)
}

func TestSelect_SwitchingStudentsLeavesOneLoop(t *testing.T) {
	api := newFakeFleet()
	api.addBus(3, 18.04, -77.5)
	api.addBus(4, 18.05, -77.6)
	api.addRoute(5, utils.Ptr(3))
	api.addRoute(6, utils.Ptr(4))
	tr, rec := newTracker(t, api, tracking.WithInterval(time.Hour))

	_, err := tr.Select(context.Background(), student(1, utils.Ptr(5)))
	require.NoError(t, err)
	_, err = tr.Select(context.Background(), student(2, utils.Ptr(6)))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return tr.Active() == 1 }, eventuallyTimeout, tick)
	require.Eventually(t, func() bool { return rec.snapshotsFor(4) == 1 }, eventuallyTimeout, tick)

	sub, ok := tr.Current()
	require.True(t, ok)
	require.Equal(t, 2, sub.SubjectID)
	require.Equal(t, 4, *sub.BusID)
	require.True(t, rec.hasState(tracking.Stopped))

	// whatever A fetched before it was canceled, nothing for bus 3 arrives after the switch
	before := rec.snapshotsFor(3)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, before, rec.snapshotsFor(3))
	require.LessOrEqual(t, api.busCallsFor(3), 1)
}

func TestStop_DeliversNothingAfterReturn(t *testing.T) {
	api := newFakeFleet()
	api.addBus(3, 18.04, -77.5)
	api.addRoute(5, utils.Ptr(3))
	tr, rec := newTracker(t, api, tracking.WithInterval(time.Millisecond))

	_, err := tr.Select(context.Background(), student(1, utils.Ptr(5)))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.snapshotsFor(3) >= 2 }, eventuallyTimeout, tick)

	tr.Stop()
	delivered := len(rec.all())
	require.Equal(t, tracking.Stopped, tr.State())
	require.Equal(t, tracking.Stopped, rec.all()[delivered-1].State)

	require.Eventually(t, func() bool { return tr.Active() == 0 }, eventuallyTimeout, tick)
	time.Sleep(10 * time.Millisecond)
	require.Len(t, rec.all(), delivered)
}

func TestPolling_FailuresDegradeThenRecover(t *testing.T) {
	api := newFakeFleet()
	api.addBus(3, 18.04, -77.5)
	api.addRoute(5, utils.Ptr(3))
	api.failBusCalls(3, 3)
	tr, rec := newTracker(t, api,
		tracking.WithInterval(time.Millisecond),
		tracking.WithDegradedPolicy(3, 30*time.Millisecond),
	)

	_, err := tr.Select(context.Background(), student(1, utils.Ptr(5)))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.hasState(tracking.Degraded) }, eventuallyTimeout, tick)
	require.Eventually(t, func() bool { return rec.snapshotsFor(3) >= 1 }, eventuallyTimeout, tick)
	require.Equal(t, tracking.Polling, tr.State())

	var degraded tracking.Update
	for _, u := range rec.all() {
		if u.State == tracking.Degraded {
			degraded = u
		}
	}
	require.ErrorIs(t, degraded.Err, errors.ErrTransientNetwork)
}

func TestPolling_DegradedLoopSlowsDown(t *testing.T) {
	api := newFakeFleet()
	api.addRoute(5, utils.Ptr(3))
	api.failBusCalls(3, -1)
	tr, rec := newTracker(t, api,
		tracking.WithInterval(time.Millisecond),
		tracking.WithDegradedPolicy(2, time.Hour),
	)

	_, err := tr.Select(context.Background(), student(1, utils.Ptr(5)))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.hasState(tracking.Degraded) }, eventuallyTimeout, tick)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 2, api.busCallsFor(3))
	require.Equal(t, tracking.Degraded, tr.State())
	require.Equal(t, 1, tr.Active(), "failures never end the subscription")
}

func TestSelect_RoutesAreCached(t *testing.T) {
	api := newFakeFleet()
	api.addBus(3, 18.04, -77.5)
	api.addRoute(5, utils.Ptr(3))
	tr, _ := newTracker(t, api, tracking.WithInterval(time.Hour), tracking.WithRouteCache(8, time.Minute))

	for i := 0; i < 3; i++ {
		_, err := tr.Select(context.Background(), student(1, utils.Ptr(5)))
		require.NoError(t, err)
	}
	routes, _ := api.calls()
	require.Equal(t, 1, routes)
}
