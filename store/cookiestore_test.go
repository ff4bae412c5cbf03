package store_test

import (
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teamsales/crm-client/store"
)

func testAPIURL(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse("https://api.teamsales.app")
	require.NoError(t, err)
	return u
}

func newTestMirror(t *testing.T, dir string, now func() time.Time) (*store.CookieMirror, *cookiejar.Jar) {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	opts := []store.CookieMirrorOption{}
	if now != nil {
		opts = append(opts, store.WithNowTime(now))
	}
	mirror, err := store.NewCookieMirror(dir, testAPIURL(t), jar, false, opts...)
	require.NoError(t, err)
	return mirror, jar
}

func TestCookieMirrorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mirror, jar := newTestMirror(t, dir, nil)

	require.NoError(t, mirror.WriteToken("abc123"))

	token, err := mirror.ReadToken()
	require.NoError(t, err)
	require.Equal(t, "abc123", token)

	// The jar carries the ts-token cookie for the API origin.
	cookies := jar.Cookies(testAPIURL(t))
	require.Len(t, cookies, 1)
	require.Equal(t, store.TokenCookieName, cookies[0].Name)
	require.Equal(t, "abc123", cookies[0].Value)
}

func TestCookieMirrorSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	mirror, _ := newTestMirror(t, dir, nil)
	require.NoError(t, mirror.WriteToken("abc123"))

	reopened, jar := newTestMirror(t, dir, nil)

	token, err := reopened.ReadToken()
	require.NoError(t, err)
	require.Equal(t, "abc123", token)

	// Reopening re-seeds the jar from the stored record.
	cookies := jar.Cookies(testAPIURL(t))
	require.Len(t, cookies, 1)
	require.Equal(t, "abc123", cookies[0].Value)
}

func TestCookieMirrorExpiry(t *testing.T) {
	dir := t.TempDir()

	writtenAt := time.Now()
	mirror, _ := newTestMirror(t, dir, func() time.Time { return writtenAt })
	require.NoError(t, mirror.WriteToken("abc123"))

	// Eight days later the seven-day cookie has lapsed.
	expired, _ := newTestMirror(t, dir, func() time.Time { return writtenAt.Add(8 * 24 * time.Hour) })
	token, err := expired.ReadToken()
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestCookieMirrorClear(t *testing.T) {
	dir := t.TempDir()
	mirror, jar := newTestMirror(t, dir, nil)
	require.NoError(t, mirror.WriteToken("abc123"))

	require.NoError(t, mirror.Clear())

	token, err := mirror.ReadToken()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Empty(t, jar.Cookies(testAPIURL(t)))

	// Clearing an already-clear mirror is a no-op.
	require.NoError(t, mirror.Clear())
}
