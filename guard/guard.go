package guard

import (
	"github.com/teamsales/crm-client/session"
)

// Class partitions routes by access requirements.
type Class int

const (
	// ClassOpen routes need no session; an already-authenticated user is
	// sent on to the dashboard instead of seeing them.
	ClassOpen Class = iota
	// ClassProtected routes require a valid session.
	ClassProtected
)

// ClassOf classifies a path. Only the login and signup entry points are
// open.
func ClassOf(path string) Class {
	switch path {
	case session.RouteLogin, session.RouteSignup:
		return ClassOpen
	}
	return ClassProtected
}

// Decide returns the path the user must be redirected to, or "" to stay put.
// While restoration is still running no judgement is made: redirecting
// before then would bounce a user to login while their valid session is
// about to be restored.
func Decide(state session.State, sess *session.Session, path string) string {
	if state != session.StateReady {
		return ""
	}
	authenticated := sess.Valid()
	switch ClassOf(path) {
	case ClassOpen:
		if authenticated {
			return session.RouteDashboard
		}
	case ClassProtected:
		if !authenticated {
			return session.RouteLogin
		}
	}
	return ""
}
