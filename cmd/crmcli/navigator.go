package main

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// consoleNavigator stands in for the browser's location bar. Redirects are
// surfaced to the user instead of reloading a page.
type consoleNavigator struct {
	lock     sync.Mutex
	location string
}

func newConsoleNavigator(location string) *consoleNavigator {
	return &consoleNavigator{location: location}
}

func (n *consoleNavigator) Location() string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.location
}

func (n *consoleNavigator) Redirect(path string) {
	n.lock.Lock()
	n.location = path
	n.lock.Unlock()
	log.Info().Str("path", path).Msg("Redirected")
}
