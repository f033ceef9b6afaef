package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/kiddiebus/kiddiebus-client/fleet"
	"github.com/kiddiebus/kiddiebus-client/internal/apitest"
	"github.com/kiddiebus/kiddiebus-client/internal/utils"
	"github.com/kiddiebus/kiddiebus-client/users"
	"github.com/stretchr/testify/require"
)

const (
	parentEmail  = "pat@example.com"
	testPassword = "password123"
)

type cli struct {
	t       *testing.T
	backend *apitest.Backend
	parent  users.User
}

func setupCLI(t *testing.T) *cli {
	t.Helper()
	c := &cli{t: t, backend: apitest.New(t)}
	c.parent = c.backend.AddUser(users.User{
		Email: parentEmail, FirstName: "Pat", LastName: "Brown", Role: users.RoleParent, IsActive: true,
	}, testPassword)

	t.Setenv("API_URL", c.backend.URL())
	t.Setenv("ENV", "TEST")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("REQUESTS_PER_SECOND", "0")
	t.Setenv("TOKEN_STORE", "file")
	t.Setenv("TOKEN_FILE", filepath.Join(t.TempDir(), "tokens.json"))
	t.Setenv("TOKEN_STORE_SECRET", "test-secret")
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	t.Setenv("POLL_INTERVAL", "20ms")
	return c
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	a := &app{out: &printer{out: &out, err: &out}}
	cmd := newRootCmd(a)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	require.NoError(c.t, a.close())
	return out.String(), err
}

func TestCLI_LoginWhoamiLogout(t *testing.T) {
	c := setupCLI(t)

	_, err := c.run("whoami")
	require.ErrorContains(t, err, "not logged in")

	out, err := c.run("login", "--email", parentEmail, "--password", testPassword)
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as "+parentEmail)

	out, err = c.run("whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Pat Brown")
	require.Contains(t, out, "parent")

	out, err = c.run("can-view", "/dashboard/buses")
	require.NoError(t, err)
	require.Contains(t, out, "redirect-landing /dashboard")

	out, err = c.run("can-view", "/dashboard/track")
	require.NoError(t, err)
	require.Contains(t, out, "render")

	_, err = c.run("logout")
	require.NoError(t, err)

	out, err = c.run("can-view", "/dashboard/track")
	require.NoError(t, err)
	require.Contains(t, out, "redirect-login /login")
}

func TestCLI_InvalidCredentials(t *testing.T) {
	c := setupCLI(t)

	_, err := c.run("login", "--email", parentEmail, "--password", "wrong")
	require.ErrorContains(t, err, "Invalid email or password")
}

func TestCLI_ProfileUpdate(t *testing.T) {
	c := setupCLI(t)
	_, err := c.run("login", "--email", parentEmail, "--password", testPassword)
	require.NoError(t, err)

	out, err := c.run("profile", "--phone", "876-555-0100")
	require.NoError(t, err)
	require.Contains(t, out, "Profile updated")
	require.Contains(t, out, "876-555-0100")
}

func TestCLI_TrackPrintsPositions(t *testing.T) {
	c := setupCLI(t)
	c.backend.AddBus(fleet.Bus{ID: 3, RegistrationNumber: "KB-3"})
	c.backend.AddRoute(fleet.Route{ID: 5, Name: "Morning", BusID: utils.Ptr(3)})
	c.backend.AddStudent(fleet.Student{ID: 9, FullName: "Sam Brown", RouteID: utils.Ptr(5), ParentID: utils.Ptr(c.parent.ID)})
	c.backend.MoveBus(3, 18.0512, -77.5011)

	_, err := c.run("login", "--email", parentEmail, "--password", testPassword)
	require.NoError(t, err)

	out, err := c.run("track", "--duration", "200ms")
	require.NoError(t, err)
	require.Contains(t, out, "Tracking Sam Brown")
	require.Contains(t, out, "KB-3")
	require.Contains(t, out, "18.05120, -77.50110")
}

func TestCLI_ShortTrackKeepsSession(t *testing.T) {
	c := setupCLI(t)
	c.backend.AddBus(fleet.Bus{ID: 3, RegistrationNumber: "KB-3"})
	c.backend.AddRoute(fleet.Route{ID: 5, Name: "Morning", BusID: utils.Ptr(3)})
	c.backend.AddStudent(fleet.Student{ID: 9, FullName: "Sam Brown", RouteID: utils.Ptr(5), ParentID: utils.Ptr(c.parent.ID)})

	_, err := c.run("login", "--email", parentEmail, "--password", testPassword)
	require.NoError(t, err)

	_, err = c.run("track", "--duration", "1ms")
	require.NoError(t, err)

	out, err := c.run("whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Pat Brown")
}

func TestCLI_TrackStudentWithoutRoute(t *testing.T) {
	c := setupCLI(t)
	c.backend.AddStudent(fleet.Student{ID: 9, FullName: "Sam Brown", ParentID: utils.Ptr(c.parent.ID)})

	_, err := c.run("login", "--email", parentEmail, "--password", testPassword)
	require.NoError(t, err)

	out, err := c.run("track", "--student", "9")
	require.NoError(t, err)
	require.Contains(t, out, "not assigned to a route")
}

func TestPickStudent(t *testing.T) {
	students := []fleet.Student{
		{ID: 1, FullName: "No Route"},
		{ID: 2, FullName: "Has Route", RouteID: utils.Ptr(5)},
	}

	s, err := pickStudent(students, 0)
	require.NoError(t, err)
	require.Equal(t, 2, s.ID)

	s, err = pickStudent(students, 1)
	require.NoError(t, err)
	require.Equal(t, 1, s.ID)

	_, err = pickStudent(students, 7)
	require.Error(t, err)

	_, err = pickStudent(nil, 0)
	require.Error(t, err)
}
