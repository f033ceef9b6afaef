package apiclient

import (
	"fmt"
	"strings"
)

// API paths, relative to the configured base URL
const (
	// Credential endpoints
	RouteAuthLogin    = "/auth/login"
	RouteAuthRegister = "/auth/register"
	RouteAuthGoogle   = "/auth/google"
	RouteAuthRefresh  = "/auth/refresh"

	// Profile
	RouteAuthMe = "/auth/me"

	// Fleet read endpoints
	RouteStudents = "/students"
	routeBus      = "/buses/%d"
	routeRoute    = "/routes/%d"
)

func RouteBus(id int) string {
	return fmt.Sprintf(routeBus, id)
}

func RouteRoute(id int) string {
	return fmt.Sprintf(routeRoute, id)
}

var credentialRoutes = []string{RouteAuthLogin, RouteAuthRegister, RouteAuthGoogle}

// IsCredentialEndpoint reports whether path exchanges user credentials for tokens.
// Failures there are authentication errors.
func IsCredentialEndpoint(path string) bool {
	for _, r := range credentialRoutes {
		if strings.HasSuffix(path, r) {
			return true
		}
	}
	return false
}

// IsTokenExempt reports whether path is sent without the access token and is never
// subject to refresh-and-retry. path may be absolute or relative to the base URL.
func IsTokenExempt(path string) bool {
	return IsCredentialEndpoint(path) || strings.HasSuffix(path, RouteAuthRefresh)
}
