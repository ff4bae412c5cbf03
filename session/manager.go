package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/teamsales/crm-client/crmapi"
	"github.com/teamsales/crm-client/store"
)

// Storage keys shared with every other TeamSales client surface.
const (
	StoreKeyUser  = "ts-user"
	StoreKeyToken = "ts-token"
)

// Stores bundles the durable storage dependencies for the Manager.
type Stores struct {
	Primary store.Repo        // authoritative key-value store
	Mirror  store.TokenMirror // secondary token copy (cookie)
}

// Manager owns the canonical in-memory Session and every write to durable
// storage. Consumers read snapshots and call the operations below - they
// never touch the stores or the API client's Authorization header directly.
type Manager struct {
	api    *crmapi.Client
	stores Stores
	nav    Navigator

	lock    sync.RWMutex
	current *Session
	state   State

	loginGen atomic.Uint64 // fences concurrent login attempts

	subsLock sync.Mutex
	subs     []*Subscription

	unauthorized *crmapi.ObserverHandle
}

// NewManager wires the manager to the shared API client, storage and
// navigator, and attaches the process-wide unauthorized observer. Call Close
// before constructing a replacement, otherwise observers accumulate and a
// single 401 redirects more than once.
func NewManager(api *crmapi.Client, stores Stores, nav Navigator) (*Manager, error) {
	if api == nil {
		return nil, errors.New("[NewManager] api client is required")
	}
	if stores.Primary == nil {
		return nil, errors.New("[NewManager] primary store is required")
	}
	if stores.Mirror == nil {
		return nil, errors.New("[NewManager] token mirror is required")
	}
	if nav == nil {
		return nil, errors.New("[NewManager] navigator is required")
	}

	m := &Manager{
		api:    api,
		stores: stores,
		nav:    nav,
	}
	m.unauthorized = api.OnUnauthorized(func() {
		log.Warn().Msg("Unauthorized response observed, ending session")
		m.destroy()
		m.redirectToLogin()
	})
	return m, nil
}

// Current returns a snapshot of the session, or nil when absent.
func (m *Manager) Current() *Session {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.current == nil {
		return nil
	}
	snapshot := *m.current
	return &snapshot
}

// State reports whether startup restoration has completed.
func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// Ready is true once the first Restore has run to completion, success or not.
func (m *Manager) Ready() bool {
	return m.State() == StateReady
}

// Restore loads the persisted session at startup. A profile that fails to
// decode or lacks a tenant scope is corrupt: both stores are cleared and the
// app proceeds unauthenticated - never a fatal error. Ready flips exactly
// once, after this completes.
func (m *Manager) Restore() {
	defer m.markReady()

	raw, err := m.stores.Primary.Get(StoreKeyUser)
	if err != nil {
		log.Warn().Err(err).Msg("Discarding unreadable stored session")
		m.destroy()
		return
	}
	if raw == "" {
		m.destroy()
		return
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		log.Warn().Err(errors.Wrap(StorageCorruptErr, err.Error())).Msg("Discarding corrupt stored session")
		m.destroy()
		return
	}
	sess.Token = m.loadToken()
	if sess.TenantID == "" {
		log.Warn().Err(MissingTenantErr).Msg("Discarding stored session without tenant scope")
		m.destroy()
		return
	}
	if !sess.Valid() {
		log.Warn().Msg("Discarding partially stored session")
		m.destroy()
		return
	}

	m.api.SetToken(sess.Token)
	m.setSession(&sess)
	log.Info().Str("tenantID", sess.TenantID).Str("userID", sess.UserID).Msg("Session restored")
}

// loadToken reads the bearer token from the primary store, falling back to
// the cookie mirror only when the primary has no value.
func (m *Manager) loadToken() string {
	if token, err := m.stores.Primary.Get(StoreKeyToken); err == nil && token != "" {
		return token
	}
	token, err := m.stores.Mirror.ReadToken()
	if err != nil {
		log.Warn().Err(err).Msg("Token mirror unreadable")
		return ""
	}
	return token
}

// Login authenticates against the auth API. On any failure - transport,
// non-2xx, or a malformed 2xx payload - the session is destroyed before the
// error is returned, so no partial state survives. A login that resolves
// after a newer attempt has started is discarded.
func (m *Manager) Login(ctx context.Context, creds crmapi.Credentials) (*Session, error) {
	gen := m.loginGen.Add(1)

	resp, err := m.api.Login(ctx, creds)

	// A stale response, success or failure, must not touch state the newer
	// attempt now owns.
	if gen != m.loginGen.Load() {
		return nil, LoginSupersededErr
	}

	if err != nil {
		m.destroy()
		return nil, errors.Wrap(err, "[Manager.Login] auth API")
	}

	sess := &Session{
		UserID:     resp.User.ID,
		Username:   resp.User.Username,
		Email:      resp.User.Email,
		Role:       Role(resp.User.Role),
		TenantID:   resp.User.TenantID,
		TenantName: resp.User.TenantName,
		AvatarRef:  resp.User.AvatarRef,
		Token:      resp.Token,
	}
	sess.applyDefaults()

	if err := m.persist(sess); err != nil {
		m.destroy()
		return nil, errors.Wrap(err, "[Manager.Login] persisting session")
	}
	m.api.SetToken(sess.Token)
	m.setSession(sess)
	log.Info().Str("tenantID", sess.TenantID).Str("userID", sess.UserID).Msg("Logged in")
	return m.Current(), nil
}

// Signup forwards the registration fields to the auth API and returns the
// raw payload for display. It never establishes a session - the user logs in
// separately.
func (m *Manager) Signup(ctx context.Context, reg crmapi.Registration) (json.RawMessage, error) {
	return m.api.Register(ctx, reg)
}

// Logout destroys the session and forces navigation to the login entry
// point. Idempotent: with no session it is a no-op apart from the
// navigation.
func (m *Manager) Logout() {
	m.destroy()
	m.redirectToLogin()
}

// Close detaches the unauthorized observer and closes every subscription.
func (m *Manager) Close() {
	if m.unauthorized != nil {
		m.unauthorized.Close()
	}
	m.subsLock.Lock()
	subs := append([]*Subscription(nil), m.subs...)
	m.subsLock.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

func (m *Manager) persist(sess *Session) error {
	profile, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding profile")
	}
	if err := m.stores.Primary.Set(StoreKeyUser, string(profile)); err != nil {
		return errors.Wrap(err, "writing profile")
	}
	if err := m.stores.Primary.Set(StoreKeyToken, sess.Token); err != nil {
		return errors.Wrap(err, "writing token")
	}
	if err := m.stores.Mirror.WriteToken(sess.Token); err != nil {
		return errors.Wrap(err, "writing token mirror")
	}
	return nil
}

// destroy clears every copy of the session: both durable stores, the API
// client's Authorization header and the in-memory snapshot. State stays
// Ready once the initial restore has completed - it tracks startup, not
// authentication.
func (m *Manager) destroy() {
	if err := m.stores.Primary.Delete(StoreKeyUser); err != nil {
		log.Warn().Err(err).Msg("Failed to clear stored profile")
	}
	if err := m.stores.Primary.Delete(StoreKeyToken); err != nil {
		log.Warn().Err(err).Msg("Failed to clear stored token")
	}
	if err := m.stores.Mirror.Clear(); err != nil {
		log.Warn().Err(err).Msg("Failed to clear token mirror")
	}
	m.api.ClearToken()
	m.setSession(nil)
}

func (m *Manager) redirectToLogin() {
	// Already at the login entry point - redirecting again would loop.
	if m.nav.Location() == RouteLogin {
		return
	}
	m.nav.Redirect(RouteLogin)
}

func (m *Manager) setSession(sess *Session) {
	m.lock.Lock()
	m.current = sess
	state := m.state
	m.lock.Unlock()

	var snapshot *Session
	if sess != nil {
		s := *sess
		snapshot = &s
	}
	m.broadcast(Change{State: state, Session: snapshot})
}

func (m *Manager) markReady() {
	m.lock.Lock()
	if m.state == StateReady {
		m.lock.Unlock()
		return
	}
	m.state = StateReady
	var snapshot *Session
	if m.current != nil {
		s := *m.current
		snapshot = &s
	}
	m.lock.Unlock()
	m.broadcast(Change{State: StateReady, Session: snapshot})
}
