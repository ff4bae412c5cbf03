package guard

import (
	"github.com/rs/zerolog/log"

	"github.com/teamsales/crm-client/session"
)

// Watcher re-runs the guard whenever the session manager reports a change.
// Location changes are pushed in by the navigation layer through Evaluate.
type Watcher struct {
	mgr  *session.Manager
	nav  session.Navigator
	sub  *session.Subscription
	done chan struct{}
}

// NewWatcher subscribes to the manager and starts enforcing route access in
// the background. Close it when the consumer unmounts.
func NewWatcher(mgr *session.Manager, nav session.Navigator) *Watcher {
	w := &Watcher{
		mgr:  mgr,
		nav:  nav,
		sub:  mgr.Subscribe(),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Watcher) run() {
	defer close(w.done)
	for change := range w.sub.Receive() {
		w.apply(change.State, change.Session)
	}
}

// Evaluate re-checks the current location against the current session, for
// the navigation layer to call after every location change.
func (w *Watcher) Evaluate() {
	w.apply(w.mgr.State(), w.mgr.Current())
}

func (w *Watcher) apply(state session.State, sess *session.Session) {
	target := Decide(state, sess, w.nav.Location())
	if target == "" || target == w.nav.Location() {
		return
	}
	log.Debug().Str("from", w.nav.Location()).Str("to", target).Msg("Route guard redirect")
	w.nav.Redirect(target)
}

// Close detaches from the manager and waits for the background loop to stop.
func (w *Watcher) Close() {
	w.sub.Close()
	<-w.done
}
