package session

// Application entry points the session layer redirects between.
const (
	RouteLogin     = "/login"
	RouteSignup    = "/signup"
	RouteDashboard = "/dashboard"
)

// Navigator performs the hard full-page redirects the session manager forces
// on logout and on an unauthorized response. Implementations report where the
// user currently is, so a redirect to the login entry point can be skipped
// when already there.
type Navigator interface {
	Location() string
	Redirect(path string)
}
