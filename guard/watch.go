package guard

import (
	"sync"

	"github.com/kiddiebus/kiddiebus-client/sessions"
)

// SessionSource is the read side of sessions.Store
type SessionSource interface {
	Get() sessions.Session
	Subscribe(fn func(sessions.Session)) (unsubscribe func())
}

var _ SessionSource = (*sessions.Store)(nil)

// Watch calls fn with the decision for path now and again whenever a session change
// alters it. fn must not mutate the session. The returned function stops watching.
func Watch(src SessionSource, views Views, path string, fn func(Decision)) (stop func()) {
	var (
		mu   sync.Mutex
		last Decision
		seen bool
	)
	// Always decide on the latest session so a late initial evaluation cannot
	// overwrite a newer one.
	emit := func(sessions.Session) {
		mu.Lock()
		defer mu.Unlock()
		d := views.Decide(src.Get(), path)
		if seen && d == last {
			return
		}
		last, seen = d, true
		fn(d)
	}

	unsubscribe := src.Subscribe(emit)
	emit(sessions.Session{})
	return unsubscribe
}
