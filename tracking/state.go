package tracking

import (
	"time"

	"github.com/kiddiebus/kiddiebus-client/fleet"
)

type State int

const (
	Idle     State = iota // nothing to poll
	Polling               // loop running at the normal cadence
	Degraded              // loop running at the degraded cadence after repeated failures
	Stopped               // subscription canceled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Degraded:
		return "degraded"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Subscription is the live polling loop for one selected student
type Subscription struct {
	SubjectID     int
	RouteID       *int
	BusID         *int
	LastFetchedAt *time.Time
	cancel        func()
}

func (s *Subscription) snapshot() Subscription {
	cp := *s
	cp.cancel = nil
	if s.LastFetchedAt != nil {
		at := *s.LastFetchedAt
		cp.LastFetchedAt = &at
	}
	return cp
}

// Update is delivered to the Observer on every state change and every successful poll
type Update struct {
	SubjectID int
	State     State
	Route     *fleet.Route    // Set when a selection resolves its route
	Snapshot  *fleet.Snapshot // Set on a successful poll
	Err       error           // Set when the route lookup failed or polling degraded
}

type Observer interface {
	OnUpdate(Update)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Update)

func (f ObserverFunc) OnUpdate(u Update) {
	f(u)
}
