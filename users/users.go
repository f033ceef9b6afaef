package users

import (
	"fmt"
	"strings"
	"time"
)

// RoleType represents the closed set of roles a kiddiebus account can hold
type RoleType string

const (
	RoleParent   RoleType = "parent"   // Tracks their own children's buses
	RoleOperator RoleType = "operator" // Runs a fleet: routes, buses, students, check-in
	RoleAdmin    RoleType = "admin"    // Everything an operator can do, across operators
)

var allRoles = []RoleType{RoleParent, RoleOperator, RoleAdmin}

// ParseRole converts a wire role string to a RoleType. Unknown roles are rejected.
func ParseRole(s string) (RoleType, error) {
	for _, r := range allRoles {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r RoleType) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r RoleType) String() string {
	return string(r)
}

// RoleSet is a set over RoleType. A nil RoleSet means "no restriction".
type RoleSet map[RoleType]struct{}

// Roles builds a RoleSet. Roles() with no arguments is an empty, non-nil set that admits nobody.
func Roles(roles ...RoleType) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r RoleType) bool {
	_, ok := s[r]
	return ok
}

// Slice returns the members in declaration order
func (s RoleSet) Slice() []RoleType {
	out := make([]RoleType, 0, len(s))
	for _, r := range allRoles {
		if s.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	parts := make([]string, 0, len(s))
	for _, r := range s.Slice() {
		parts = append(parts, string(r))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

type User struct {
	ID        int       `json:"id"`                   // Server assigned identifier
	Email     string    `json:"email,omitempty"`      // Login email
	FirstName string    `json:"first_name,omitempty"` // First name of the user
	LastName  string    `json:"last_name,omitempty"`  // Last name of the user
	Phone     string    `json:"phone,omitempty"`      // Contact phone
	Role      RoleType  `json:"role"`                 // One of parent, operator, admin
	IsActive  bool      `json:"is_active,omitempty"`  // Deactivated accounts cannot log in
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsOperator is true for operators and admins; admins can do everything operators can
func (u *User) IsOperator() bool {
	return u != nil && (u.Role == RoleOperator || u.Role == RoleAdmin)
}

func (u *User) IsParent() bool {
	return u != nil && u.Role == RoleParent
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Password  *string `json:"password,omitempty"`
}

func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.Password == nil
}

// Registration is the body of a self-service sign up
type Registration struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Phone     string   `json:"phone,omitempty"`
	Role      RoleType `json:"role"`
}

// Validate checks the fields the server requires before a request is sent
func (r Registration) Validate() error {
	for field, v := range map[string]string{
		"email":      r.Email,
		"password":   r.Password,
		"first_name": r.FirstName,
		"last_name":  r.LastName,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", field)
		}
	}
	if !r.Role.Valid() {
		return fmt.Errorf("role must be one of: parent, operator, admin")
	}
	return nil
}
