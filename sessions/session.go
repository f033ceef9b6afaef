package sessions

import (
	"github.com/kiddiebus/kiddiebus-client/users"
)

// Session is the authenticated identity held by the client process. Tokens are not
// part of it; they live in the token.Store owned by the session manager.
type Session struct {
	UserID          int            // Set while authenticated
	User            *users.User    // Profile as last returned by the API
	Role            users.RoleType // Defined iff IsAuthenticated
	IsAuthenticated bool
	IsLoading       bool // True until the persisted session has been checked
}

// Anonymous is the state after logout or a failed session restore
func Anonymous() Session {
	return Session{}
}

// Starting is the state at process start, before Initialize has run
func Starting() Session {
	return Session{IsLoading: true}
}

// Authenticated builds the state for a signed in user
func Authenticated(u *users.User) Session {
	cp := *u
	return Session{
		UserID:          u.ID,
		User:            &cp,
		Role:            u.Role,
		IsAuthenticated: true,
	}
}

func (s Session) clone() Session {
	if s.User != nil {
		cp := *s.User
		s.User = &cp
	}
	return s
}
