package guard_test

import (
	"testing"

	"github.com/kiddiebus/kiddiebus-client/guard"
	"github.com/kiddiebus/kiddiebus-client/sessions"
	"github.com/kiddiebus/kiddiebus-client/users"
	"github.com/stretchr/testify/require"
)

var operatorOrAdmin = users.Roles(users.RoleOperator, users.RoleAdmin)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		in   guard.Input
		want guard.Decision
	}{
		{
			name: "loading shows placeholder",
			in:   guard.Input{Loading: true, AllowedRoles: operatorOrAdmin, Requested: "/dashboard/routes"},
			want: guard.Decision{Kind: guard.Placeholder},
		},
		{
			name: "unauthenticated goes to login with origin",
			in:   guard.Input{AllowedRoles: operatorOrAdmin, Requested: "/dashboard/routes"},
			want: guard.Decision{Kind: guard.RedirectLogin, Target: guard.LoginPath, From: "/dashboard/routes"},
		},
		{
			name: "no role restriction renders",
			in:   guard.Input{Authenticated: true, Role: users.RoleParent, Requested: "/dashboard"},
			want: guard.Decision{Kind: guard.Render},
		},
		{
			name: "allowed role renders",
			in:   guard.Input{Authenticated: true, Role: users.RoleAdmin, AllowedRoles: operatorOrAdmin},
			want: guard.Decision{Kind: guard.Render},
		},
		{
			name: "wrong role goes to landing",
			in:   guard.Input{Authenticated: true, Role: users.RoleParent, AllowedRoles: operatorOrAdmin},
			want: guard.Decision{Kind: guard.RedirectLanding, Target: guard.LandingPath},
		},
		{
			name: "empty allowed set admits nobody",
			in:   guard.Input{Authenticated: true, Role: users.RoleAdmin, AllowedRoles: users.Roles()},
			want: guard.Decision{Kind: guard.RedirectLanding, Target: guard.LandingPath},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, guard.Evaluate(tt.in))
		})
	}
}

func TestEvaluate_RoleMismatchNeverRedirectsToLogin(t *testing.T) {
	for _, role := range []users.RoleType{users.RoleParent} {
		d := guard.Evaluate(guard.Input{Authenticated: true, Role: role, AllowedRoles: operatorOrAdmin})
		require.Equal(t, guard.RedirectLanding, d.Kind)
	}
}

func TestEvaluate_UnauthenticatedAlwaysRedirectsToLogin(t *testing.T) {
	sets := []users.RoleSet{nil, users.Roles(), users.Roles(users.RoleParent), operatorOrAdmin}
	for _, allowed := range sets {
		for _, role := range []users.RoleType{"", users.RoleParent, users.RoleOperator, users.RoleAdmin} {
			d := guard.Evaluate(guard.Input{Role: role, AllowedRoles: allowed, Requested: "/x"})
			require.Equal(t, guard.RedirectLogin, d.Kind, "allowed=%s role=%s", allowed, role)
		}
	}
}

func TestViews_Resolve(t *testing.T) {
	v, params, ok := guard.DefaultViews.Resolve("/dashboard/routes/12/edit")
	require.True(t, ok)
	require.Equal(t, "/dashboard/routes/:id/edit", v.Pattern)
	require.Equal(t, map[string]string{"id": "12"}, params)

	v, params, ok = guard.DefaultViews.Resolve("/dashboard/routes/new/")
	require.True(t, ok)
	require.Equal(t, "/dashboard/routes/new", v.Pattern)
	require.Nil(t, params)

	v, _, ok = guard.DefaultViews.Resolve("/dashboard/track?student=4")
	require.True(t, ok)
	require.True(t, v.AllowedRoles.Contains(users.RoleParent))

	_, _, ok = guard.DefaultViews.Resolve("/nowhere")
	require.False(t, ok)
}

func TestViews_Decide(t *testing.T) {
	anonymous := sessions.Anonymous()
	parent := sessions.Authenticated(&users.User{ID: 1, Role: users.RoleParent})
	operator := sessions.Authenticated(&users.User{ID: 2, Role: users.RoleOperator})

	tests := []struct {
		name    string
		session sessions.Session
		path    string
		want    guard.Kind
	}{
		{"loading", sessions.Starting(), "/login", guard.Placeholder},
		{"anonymous on login", anonymous, "/login", guard.Render},
		{"signed in on login", parent, "/login", guard.RedirectLanding},
		{"anonymous on dashboard", anonymous, "/dashboard", guard.RedirectLogin},
		{"operator on routes", operator, "/dashboard/routes", guard.Render},
		{"parent on routes", parent, "/dashboard/routes", guard.RedirectLanding},
		{"operator on my-children", operator, "/dashboard/my-children", guard.RedirectLanding},
		{"parent on student detail", parent, "/dashboard/students/4", guard.Render},
		{"unknown signed in", operator, "/nowhere", guard.RedirectLanding},
		{"unknown anonymous", anonymous, "/nowhere", guard.RedirectHome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, guard.DefaultViews.Decide(tt.session, tt.path).Kind)
		})
	}
}

func TestWatch(t *testing.T) {
	store := sessions.NewStore()

	var got []guard.Decision
	stop := guard.Watch(store, guard.DefaultViews, "/dashboard/routes", func(d guard.Decision) {
		got = append(got, d)
	})

	store.Authenticate(&users.User{ID: 2, Role: users.RoleOperator})
	store.SetUser(&users.User{ID: 2, Role: users.RoleOperator, Phone: "555"}) // same decision, not re-emitted
	store.Reset()
	stop()
	store.Authenticate(&users.User{ID: 2, Role: users.RoleOperator})

	require.Equal(t, []guard.Kind{guard.Placeholder, guard.Render, guard.RedirectLogin}, kinds(got))
	require.Equal(t, "/dashboard/routes", got[2].From)
}

func kinds(ds []guard.Decision) []guard.Kind {
	out := make([]guard.Kind, len(ds))
	for i, d := range ds {
		out[i] = d.Kind
	}
	return out
}
