package guard

import (
	"strings"

	"github.com/kiddiebus/kiddiebus-client/sessions"
	"github.com/kiddiebus/kiddiebus-client/users"
)

type Access int

const (
	Public    Access = iota // anonymous only; signed in users go to the landing view
	Protected               // requires a session, optionally restricted by role
)

type View struct {
	Pattern      string // e.g. /dashboard/routes/:id
	Access       Access
	AllowedRoles users.RoleSet
}

type Views []View

var (
	operatorRoles = users.Roles(users.RoleOperator, users.RoleAdmin)
	parentRoles   = users.Roles(users.RoleParent)
)

// DefaultViews is the application's view table
var DefaultViews = Views{
	{Pattern: HomePath, Access: Public},
	{Pattern: LoginPath, Access: Public},
	{Pattern: "/register", Access: Public},
	{Pattern: "/register/parent", Access: Public},
	{Pattern: "/register/operator", Access: Public},

	{Pattern: LandingPath, Access: Protected},

	// Fleet management
	{Pattern: "/dashboard/routes", Access: Protected, AllowedRoles: operatorRoles},
	{Pattern: "/dashboard/routes/new", Access: Protected, AllowedRoles: operatorRoles},
	{Pattern: "/dashboard/routes/:id", Access: Protected, AllowedRoles: operatorRoles},
	{Pattern: "/dashboard/routes/:id/edit", Access: Protected, AllowedRoles: operatorRoles},
	{Pattern: "/dashboard/buses", Access: Protected, AllowedRoles: operatorRoles},
	{Pattern: "/dashboard/schools", Access: Protected, AllowedRoles: operatorRoles},
	{Pattern: "/dashboard/students", Access: Protected, AllowedRoles: operatorRoles},
	{Pattern: "/dashboard/students/new", Access: Protected, AllowedRoles: operatorRoles},
	{Pattern: "/dashboard/students/:id", Access: Protected},
	{Pattern: "/dashboard/students/:id/edit", Access: Protected},
	{Pattern: "/dashboard/checkin", Access: Protected, AllowedRoles: operatorRoles},

	// Parents
	{Pattern: "/dashboard/my-children", Access: Protected, AllowedRoles: parentRoles},
	{Pattern: "/dashboard/my-children/add", Access: Protected, AllowedRoles: parentRoles},
	{Pattern: "/dashboard/track", Access: Protected, AllowedRoles: parentRoles},

	// Everyone signed in
	{Pattern: "/dashboard/messages", Access: Protected},
	{Pattern: "/dashboard/messages/new", Access: Protected, AllowedRoles: operatorRoles},
	{Pattern: "/dashboard/profile", Access: Protected},
}

func segments(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Match reports whether path matches the view's pattern and returns its :params
func (v View) Match(path string) (map[string]string, bool) {
	want, got := segments(v.Pattern), segments(path)
	if len(want) != len(got) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range want {
		if strings.HasPrefix(seg, ":") {
			if got[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[seg[1:]] = got[i]
			continue
		}
		if seg != got[i] {
			return nil, false
		}
	}
	return params, true
}

// Resolve finds the view for a concrete path. Static patterns win over parameterised ones.
func (vs Views) Resolve(path string) (View, map[string]string, bool) {
	var (
		best       View
		bestParams map[string]string
		found      bool
	)
	for _, v := range vs {
		params, ok := v.Match(path)
		if !ok {
			continue
		}
		if !found || len(params) < len(bestParams) {
			best, bestParams, found = v, params, true
		}
	}
	return best, bestParams, found
}

// Decide resolves path and evaluates it against the session
func (vs Views) Decide(s sessions.Session, path string) Decision {
	if s.IsLoading {
		return Decision{Kind: Placeholder}
	}
	v, _, ok := vs.Resolve(path)
	switch {
	case !ok && s.IsAuthenticated:
		return Decision{Kind: RedirectLanding, Target: LandingPath}
	case !ok:
		return Decision{Kind: RedirectHome, Target: HomePath}
	case v.Access == Public && s.IsAuthenticated:
		return Decision{Kind: RedirectLanding, Target: LandingPath}
	case v.Access == Public:
		return Decision{Kind: Render}
	default:
		return Evaluate(InputFor(s, v.AllowedRoles, path))
	}
}
