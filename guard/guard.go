// Package guard decides whether a view may be rendered for the current session.
package guard

import (
	"github.com/kiddiebus/kiddiebus-client/sessions"
	"github.com/kiddiebus/kiddiebus-client/users"
)

const (
	HomePath    = "/"
	LoginPath   = "/login"
	LandingPath = "/dashboard" // where authenticated users land
)

type Kind int

const (
	Placeholder     Kind = iota // session still loading
	RedirectLogin               // not signed in
	RedirectLanding             // signed in but the view is not for this role, or is anonymous-only
	RedirectHome                // unknown view, not signed in
	Render
)

var kindNames = map[Kind]string{
	Placeholder:     "placeholder",
	RedirectLogin:   "redirect-login",
	RedirectLanding: "redirect-landing",
	RedirectHome:    "redirect-home",
	Render:          "render",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Input is everything a decision depends on
type Input struct {
	Loading       bool
	Authenticated bool
	Role          users.RoleType
	AllowedRoles  users.RoleSet // nil means any authenticated role
	Requested     string        // path being entered
}

// InputFor builds an Input from a session snapshot
func InputFor(s sessions.Session, allowed users.RoleSet, requested string) Input {
	return Input{
		Loading:       s.IsLoading,
		Authenticated: s.IsAuthenticated,
		Role:          s.Role,
		AllowedRoles:  allowed,
		Requested:     requested,
	}
}

// Decision is what the host should do with the requested view
type Decision struct {
	Kind   Kind
	Target string // redirect destination; empty for Placeholder and Render
	From   string // set on RedirectLogin so the host can return after sign in
}

// Evaluate is a pure function of its input. A role mismatch never signs the user out:
// it sends them to the landing view.
func Evaluate(in Input) Decision {
	switch {
	case in.Loading:
		return Decision{Kind: Placeholder}
	case !in.Authenticated:
		return Decision{Kind: RedirectLogin, Target: LoginPath, From: in.Requested}
	case in.AllowedRoles != nil && !in.AllowedRoles.Contains(in.Role):
		return Decision{Kind: RedirectLanding, Target: LandingPath}
	default:
		return Decision{Kind: Render}
	}
}
