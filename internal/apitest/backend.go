// Package apitest runs an in-process fake of the kiddiebus REST API for tests. It
// follows the server's contract: bearer-protected resources answer 401 (or the
// configured status) once an access token is no longer valid, and /auth/refresh
// returns only a new access token.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kiddiebus/kiddiebus-client/fleet"
	"github.com/kiddiebus/kiddiebus-client/token"
	"github.com/kiddiebus/kiddiebus-client/users"
)

const (
	signingKey = "apitest-signing-key"
	accessTTL  = 15 * time.Minute
	refreshTTL = 30 * 24 * time.Hour
)

// Request is one call observed by the backend
type Request struct {
	Method string
	Path   string // Relative to the API base, e.g. /buses/3
	Bearer string
}

type account struct {
	user     users.User
	password string
}

type Backend struct {
	t   testing.TB
	srv *httptest.Server

	mu       sync.RWMutex
	accounts map[string]*account // by email
	google   map[string]int      // credential -> user id
	buses    map[int]*fleet.Bus
	routes   map[int]*fleet.Route
	students []fleet.Student
	access   map[string]int // valid access tokens -> user id
	refresh  map[string]int // valid refresh tokens -> user id
	failures map[string]int // path -> forced status
	requests []Request
	seq      int
	nextID   int

	expiredStatus int
	refreshGate   chan struct{}
	refreshCalls  int
}

// New starts a backend that is closed when the test ends
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		t:             t,
		accounts:      make(map[string]*account),
		google:        make(map[string]int),
		buses:         make(map[int]*fleet.Bus),
		routes:        make(map[int]*fleet.Route),
		access:        make(map[string]int),
		refresh:       make(map[string]int),
		failures:      make(map[string]int),
		expiredStatus: http.StatusUnauthorized,
		nextID:        1000,
	}
	b.srv = httptest.NewServer(b.routesHandler())
	t.Cleanup(b.srv.Close)
	return b
}

// URL is the API base URL, equivalent to http://host/api
func (b *Backend) URL() string {
	return b.srv.URL + "/api"
}

func (b *Backend) AddUser(u users.User, password string) users.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u.ID == 0 {
		b.nextID++
		u.ID = b.nextID
	}
	b.accounts[strings.ToLower(u.Email)] = &account{user: u, password: password}
	return u
}

// AddGoogleCredential makes credential log in as the user with userID
func (b *Backend) AddGoogleCredential(credential string, userID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.google[credential] = userID
}

func (b *Backend) AddBus(bus fleet.Bus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buses[bus.ID] = &bus
}

func (b *Backend) AddRoute(r fleet.Route) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[r.ID] = &r
}

func (b *Backend) AddStudent(s fleet.Student) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.students = append(b.students, s)
}

// MoveBus sets the bus's current location
func (b *Backend) MoveBus(id int, lat, lng float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.buses[id]
	if !ok {
		b.t.Fatalf("apitest: unknown bus %d", id)
	}
	bus.CurrentLocation = &fleet.Location{
		Latitude:  &lat,
		Longitude: &lng,
		UpdatedAt: &fleet.Timestamp{Time: time.Now().UTC()},
	}
}

// Fail makes every request to path answer status until cleared with status 0
func (b *Backend) Fail(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, path)
		return
	}
	b.failures[path] = status
}

// IssuePair mints a valid token pair for userID
func (b *Backend) IssuePair(userID int) token.Pair {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issuePairLocked(userID)
}

// ExpireAccessTokens invalidates every access token issued so far
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]int)
}

// RevokeRefreshTokens invalidates every refresh token issued so far
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = make(map[string]int)
}

// ExpiredStatus sets the status returned for an invalid access token (401 or 422)
func (b *Backend) ExpiredStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expiredStatus = status
}

// HoldRefresh blocks /auth/refresh responses until release is called
func (b *Backend) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.refreshGate = gate
	b.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			b.mu.Lock()
			b.refreshGate = nil
			b.mu.Unlock()
			close(gate)
		})
	}
	b.t.Cleanup(release)
	return release
}

func (b *Backend) RefreshCalls() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.refreshCalls
}

// Requests returns every call seen so far, in arrival order
func (b *Backend) Requests() []Request {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Calls counts the requests whose path equals path
func (b *Backend) Calls(path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) issuePairLocked(userID int) token.Pair {
	return token.Pair{
		AccessToken:  b.mintLocked(userID, "access", accessTTL, b.access),
		RefreshToken: b.mintLocked(userID, "refresh", refreshTTL, b.refresh),
	}
}

func (b *Backend) mintLocked(userID int, kind string, ttl time.Duration, valid map[string]int) string {
	b.seq++
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  fmt.Sprint(userID),
		"type": kind,
		"jti":  fmt.Sprintf("%s-%d", kind, b.seq),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		b.t.Fatalf("apitest: signing token: %v", err)
	}
	valid[raw] = userID
	return raw
}

func (b *Backend) userByIDLocked(id int) (*account, bool) {
	for _, a := range b.accounts {
		if a.user.ID == id {
			return a, true
		}
	}
	return nil, false
}

func (b *Backend) routesHandler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(b.recordRequests, b.forcedFailures)

		r.Post(routeAuthLogin, b.handleLogin)
		r.Post(routeAuthRegister, b.handleRegister)
		r.Post(routeAuthGoogle, b.handleGoogle)
		r.With(b.countRefresh, b.requireToken(tokenRefresh)).Post(routeAuthRefresh, b.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(b.requireToken(tokenAccess))
			r.Get(routeAuthMe, b.handleGetMe)
			r.Put(routeAuthMe, b.handlePutMe)
			r.Get(routeBus, b.handleGetBus)
			r.Get(routeRoute, b.handleGetRoute)
			r.Get(routeStudents, b.handleListStudents)
		})
	})
	return r
}
