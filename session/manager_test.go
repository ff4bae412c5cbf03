package session_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/teamsales/crm-client/crmapi"
	"github.com/teamsales/crm-client/crmapi/apifake"
	"github.com/teamsales/crm-client/session"
	"github.com/teamsales/crm-client/store/storefakes"
)

const (
	testEmail    = "a@b.com"
	testPassword = "x"
	testUsername = "alice"
	testTenantID = "t1"
)

// recordingNavigator tracks the current location and every forced redirect.
type recordingNavigator struct {
	lock      sync.Mutex
	location  string
	redirects []string
}

func (n *recordingNavigator) Location() string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.location
}

func (n *recordingNavigator) Redirect(path string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.location = path
	n.redirects = append(n.redirects, path)
}

func (n *recordingNavigator) recorded() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string(nil), n.redirects...)
}

// testFixture holds the fake API, shared client, stores and manager under
// test.
type testFixture struct {
	fake    *apifake.Server
	srv     *httptest.Server
	api     *crmapi.Client
	primary *storefakes.FakeRepo
	mirror  *storefakes.FakeTokenMirror
	nav     *recordingNavigator
	mgr     *session.Manager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	fake := apifake.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	f := &testFixture{
		fake:    fake,
		srv:     srv,
		primary: storefakes.NewFakeRepo(),
		mirror:  storefakes.NewFakeTokenMirror(),
	}
	f.attachManager(t)
	return f
}

// attachManager builds a fresh client and manager over the existing stores,
// simulating a new process over the same durable state.
func (f *testFixture) attachManager(t *testing.T) {
	t.Helper()

	api, err := crmapi.New(f.srv.URL)
	require.NoError(t, err)

	nav := &recordingNavigator{location: session.RouteDashboard}
	mgr, err := session.NewManager(api, session.Stores{Primary: f.primary, Mirror: f.mirror}, nav)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	f.api = api
	f.nav = nav
	f.mgr = mgr
}

func (f *testFixture) addDefaultAccount() apifake.Account {
	return f.fake.AddAccount(apifake.Account{
		Username: testUsername,
		Email:    testEmail,
		Password: testPassword,
		Role:     string(session.RoleAdmin),
		TenantID: testTenantID,
	})
}

func (f *testFixture) requireCleanState(t *testing.T) {
	t.Helper()
	require.Nil(t, f.mgr.Current())
	require.Equal(t, 0, f.primary.Len())
	mirrored, err := f.mirror.ReadToken()
	require.NoError(t, err)
	require.Empty(t, mirrored)
	require.Empty(t, f.api.Token())
}

func TestLoginAppliesDefaultsAndAttachesToken(t *testing.T) {
	f := setupTestFixture(t)
	f.addDefaultAccount()

	sess, err := f.mgr.Login(context.Background(), crmapi.Credentials{
		Email:    testEmail,
		Password: testPassword,
		Role:     string(session.RoleAdmin),
	})
	require.NoError(t, err)
	require.Equal(t, testUsername, sess.TenantName, "tenant name defaults to the username")
	require.Equal(t, session.DefaultAvatarRef, sess.AvatarRef)

	_, err = f.api.Leads(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer "+sess.Token, f.fake.LastAuthorization())
}

func TestLoginRestoreRoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	f.addDefaultAccount()

	sess, err := f.mgr.Login(context.Background(), crmapi.Credentials{
		Email:    testEmail,
		Password: testPassword,
		Role:     string(session.RoleAdmin),
	})
	require.NoError(t, err)

	// Fresh process over the same durable stores.
	f.attachManager(t)
	require.False(t, f.mgr.Ready())
	f.mgr.Restore()
	require.True(t, f.mgr.Ready())

	restored := f.mgr.Current()
	require.NotNil(t, restored)
	require.Equal(t, sess.UserID, restored.UserID)
	require.Equal(t, sess.TenantID, restored.TenantID)
	require.Equal(t, sess.Role, restored.Role)

	_, err = f.api.Leads(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer "+sess.Token, f.fake.LastAuthorization())
}

func TestRestoreDiscardsProfileWithoutTenant(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.primary.Set(session.StoreKeyUser, `{"id":"u1","username":"alice","role":"admin"}`))
	require.NoError(t, f.primary.Set(session.StoreKeyToken, "abc123"))

	f.mgr.Restore()

	require.True(t, f.mgr.Ready())
	f.requireCleanState(t)
}

func TestRestoreDiscardsCorruptProfile(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.primary.Set(session.StoreKeyUser, `{"id": truncated`))
	require.NoError(t, f.primary.Set(session.StoreKeyToken, "abc123"))

	f.mgr.Restore()

	require.True(t, f.mgr.Ready())
	f.requireCleanState(t)
}

func TestRestoreFallsBackToMirrorToken(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.primary.Set(session.StoreKeyUser, `{"id":"u1","username":"alice","role":"admin","tenantId":"t1","tenantName":"alice","avatarRef":"/a.png"}`))
	require.NoError(t, f.mirror.WriteToken("mirror-token"))

	f.mgr.Restore()

	sess := f.mgr.Current()
	require.NotNil(t, sess)
	require.Equal(t, "mirror-token", sess.Token)
	require.Equal(t, "mirror-token", f.api.Token())
}

func TestFreshLoadNoStoredData(t *testing.T) {
	f := setupTestFixture(t)

	f.mgr.Restore()

	require.True(t, f.mgr.Ready())
	require.Nil(t, f.mgr.Current())
	require.Empty(t, f.nav.recorded(), "restore alone never navigates")
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.addDefaultAccount()

	_, err := f.mgr.Login(context.Background(), crmapi.Credentials{
		Email:    testEmail,
		Password: testPassword,
		Role:     string(session.RoleAdmin),
	})
	require.NoError(t, err)

	f.mgr.Logout()
	f.mgr.Logout()

	f.requireCleanState(t)
	// The second redirect is suppressed - the navigator is already at login.
	require.Equal(t, []string{session.RouteLogin}, f.nav.recorded())
}

func TestUnauthorizedResponseDestroysSession(t *testing.T) {
	f := setupTestFixture(t)
	f.addDefaultAccount()

	_, err := f.mgr.Login(context.Background(), crmapi.Credentials{
		Email:    testEmail,
		Password: testPassword,
		Role:     string(session.RoleAdmin),
	})
	require.NoError(t, err)

	f.fake.ForceUnauthorized(true)

	_, err = f.api.Leads(context.Background())
	require.Error(t, err, "original caller still sees the failure")
	require.True(t, crmapi.IsUnauthorized(err))

	f.requireCleanState(t)
	require.Equal(t, []string{session.RouteLogin}, f.nav.recorded())
}

func TestMalformedLoginResponse(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*apifake.Server)
	}{
		{"missing tenantId", func(s *apifake.Server) { s.RespondWithoutTenant(true) }},
		{"missing token", func(s *apifake.Server) { s.RespondWithoutToken(true) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.addDefaultAccount()
			tc.setup(f.fake)

			_, err := f.mgr.Login(context.Background(), crmapi.Credentials{
				Email:    testEmail,
				Password: testPassword,
				Role:     string(session.RoleAdmin),
			})
			require.Error(t, err)
			require.True(t, errors.Is(err, crmapi.MalformedResponseErr))

			f.requireCleanState(t)
		})
	}
}

func TestFailedLoginClearsPreviousSession(t *testing.T) {
	f := setupTestFixture(t)
	f.addDefaultAccount()

	_, err := f.mgr.Login(context.Background(), crmapi.Credentials{
		Email:    testEmail,
		Password: testPassword,
		Role:     string(session.RoleAdmin),
	})
	require.NoError(t, err)

	_, err = f.mgr.Login(context.Background(), crmapi.Credentials{
		Email:    testEmail,
		Password: "wrong",
		Role:     string(session.RoleAdmin),
	})
	require.Error(t, err)

	f.requireCleanState(t)
}

func TestStaleLoginResponseDiscarded(t *testing.T) {
	f := setupTestFixture(t)
	f.addDefaultAccount()
	f.fake.AddAccount(apifake.Account{
		Username: "bob",
		Email:    "b@c.com",
		Password: "y",
		Role:     string(session.RoleAdmin),
		TenantID: "t2",
	})

	f.fake.DelayNextLogin(200 * time.Millisecond)

	slowErr := make(chan error, 1)
	go func() {
		_, err := f.mgr.Login(context.Background(), crmapi.Credentials{
			Email:    testEmail,
			Password: testPassword,
			Role:     string(session.RoleAdmin),
		})
		slowErr <- err
	}()

	// Let the slow attempt reach the server before firing the newer one.
	time.Sleep(50 * time.Millisecond)

	sess, err := f.mgr.Login(context.Background(), crmapi.Credentials{
		Email:    "b@c.com",
		Password: "y",
		Role:     string(session.RoleAdmin),
	})
	require.NoError(t, err)
	require.Equal(t, "t2", sess.TenantID)

	require.True(t, errors.Is(<-slowErr, session.LoginSupersededErr))

	current := f.mgr.Current()
	require.NotNil(t, current)
	require.Equal(t, "b@c.com", current.Email, "the newer attempt keeps the session")
}

func TestCloseDetachesUnauthorizedObserver(t *testing.T) {
	f := setupTestFixture(t)
	f.addDefaultAccount()

	_, err := f.mgr.Login(context.Background(), crmapi.Credentials{
		Email:    testEmail,
		Password: testPassword,
		Role:     string(session.RoleAdmin),
	})
	require.NoError(t, err)

	f.mgr.Close()
	f.fake.ForceUnauthorized(true)

	_, err = f.api.Leads(context.Background())
	require.Error(t, err)

	// The closed manager no longer reacts.
	require.NotNil(t, f.mgr.Current())
	require.Empty(t, f.nav.recorded())
}

func TestSubscribeReceivesChanges(t *testing.T) {
	f := setupTestFixture(t)
	f.addDefaultAccount()

	sub := f.mgr.Subscribe()
	defer sub.Close()

	_, err := f.mgr.Login(context.Background(), crmapi.Credentials{
		Email:    testEmail,
		Password: testPassword,
		Role:     string(session.RoleAdmin),
	})
	require.NoError(t, err)

	select {
	case change := <-sub.Receive():
		require.NotNil(t, change.Session)
		require.Equal(t, testTenantID, change.Session.TenantID)
	case <-time.After(time.Second):
		t.Fatal("no change delivered after login")
	}

	f.mgr.Logout()

	select {
	case change := <-sub.Receive():
		require.Nil(t, change.Session)
	case <-time.After(time.Second):
		t.Fatal("no change delivered after logout")
	}
}
