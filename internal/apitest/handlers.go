package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiddiebus/kiddiebus-client/users"
)

const (
	routeAuthLogin    = "/auth/login"
	routeAuthRegister = "/auth/register"
	routeAuthGoogle   = "/auth/google"
	routeAuthRefresh  = "/auth/refresh"
	routeAuthMe       = "/auth/me"
	routeBus          = "/buses/{id}"
	routeRoute        = "/routes/{id}"
	routeStudents     = "/students"
)

type tokenKind int

const (
	tokenAccess tokenKind = iota
	tokenRefresh
)

type contextKey string

const contextKeyUserID contextKey = "user_id"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func (b *Backend) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method: r.Method,
			Path:   strings.TrimPrefix(r.URL.Path, "/api"),
			Bearer: bearer(r),
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) forcedFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.RLock()
		status, ok := b.failures[strings.TrimPrefix(r.URL.Path, "/api")]
		b.mu.RUnlock()
		if ok {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireToken mirrors flask-jwt-extended: a missing or unknown token is a 401
// carrying {"msg": ...}; the status for an expired access token is configurable.
func (b *Backend) requireToken(kind tokenKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Missing Authorization Header"})
				return
			}

			b.mu.RLock()
			valid := b.access
			if kind == tokenRefresh {
				valid = b.refresh
			}
			userID, ok := valid[raw]
			status := b.expiredStatus
			b.mu.RUnlock()

			if !ok {
				if kind == tokenRefresh {
					status = http.StatusUnauthorized
				}
				writeJSON(w, status, map[string]string{"msg": "Token has expired"})
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[strings.ToLower(req.Email)]
	if !ok || acc.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !acc.user.IsActive {
		writeError(w, http.StatusForbidden, "Account is deactivated")
		return
	}
	b.writeAuthLocked(w, http.StatusOK, acc.user)
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req users.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email := strings.ToLower(req.Email)
	if _, exists := b.accounts[email]; exists {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	b.nextID++
	u := users.User{
		ID:        b.nextID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	b.accounts[email] = &account{user: u, password: req.Password}
	b.writeAuthLocked(w, http.StatusCreated, u)
}

func (b *Backend) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Credential == "" {
		writeError(w, http.StatusBadRequest, "Credential is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	userID, ok := b.google[req.Credential]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid Google credential")
		return
	}
	acc, ok := b.userByIDLocked(userID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid Google credential")
		return
	}
	b.writeAuthLocked(w, http.StatusOK, acc.user)
}

func (b *Backend) writeAuthLocked(w http.ResponseWriter, status int, u users.User) {
	pair := b.issuePairLocked(u.ID)
	writeJSON(w, status, map[string]any{
		"user":          u,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// countRefresh counts every refresh attempt and holds it at the gate before the
// token is checked, so rejected refreshes are counted and held too
func (b *Backend) countRefresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.refreshCalls++
		gate := b.refreshGate
		b.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(contextKeyUserID).(int)

	b.mu.Lock()
	access := b.mintLocked(userID, "access", accessTTL, b.access)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

func (b *Backend) handleGetMe(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(contextKeyUserID).(int)

	b.mu.RLock()
	defer b.mu.RUnlock()
	acc, ok := b.userByIDLocked(userID)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": acc.user})
}

func (b *Backend) handlePutMe(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(contextKeyUserID).(int)

	var req users.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.userByIDLocked(userID)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if req.FirstName != nil {
		acc.user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		acc.user.LastName = *req.LastName
	}
	if req.Phone != nil {
		acc.user.Phone = *req.Phone
	}
	if req.Password != nil {
		acc.password = *req.Password
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    acc.user,
	})
}

func (b *Backend) handleGetBus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Bus not found")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	bus, ok := b.buses[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Bus not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bus": bus})
}

func (b *Backend) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Route not found")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	route, ok := b.routes[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Route not found")
		return
	}
	out := *route
	if busID, assigned := out.AssignedBusID(); assigned {
		if bus, ok := b.buses[busID]; ok {
			out.Bus = bus
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"route": out})
}

func (b *Backend) handleListStudents(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(contextKeyUserID).(int)

	b.mu.RLock()
	defer b.mu.RUnlock()
	acc, ok := b.userByIDLocked(userID)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	out := make([]any, 0, len(b.students))
	for _, s := range b.students {
		if acc.user.IsParent() && (s.ParentID == nil || *s.ParentID != userID) {
			continue
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": out})
}
