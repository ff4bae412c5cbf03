package store

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// TokenCookieName is the cookie carrying the bearer token, shared with every
// other TeamSales client surface.
const TokenCookieName = "ts-token"

const (
	cookieFileName = "token-cookie.json"
	cookieLifetime = 7 * 24 * time.Hour
)

// cookieRecord is the durable form of the token cookie.
type cookieRecord struct {
	Value    string    `json:"value"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	SameSite string    `json:"sameSite"`
}

// CookieMirror keeps the secondary copy of the bearer token as a ts-token
// cookie: a durable record on disk plus a live cookie seeded into the shared
// HTTP client's jar, so cross-origin requests carry the token the way a
// browser with withCredentials would.
type CookieMirror struct {
	path       string
	apiURL     *url.URL
	jar        http.CookieJar
	production bool
	nowTime    func() time.Time
	lock       sync.Mutex
}

var _ TokenMirror = (*CookieMirror)(nil)

// CookieMirrorOption modifies a CookieMirror.
type CookieMirrorOption func(*CookieMirror)

// WithNowTime sets the now time function (primarily for testing expiry).
func WithNowTime(nowFunc func() time.Time) CookieMirrorOption {
	return func(cm *CookieMirror) {
		cm.nowTime = nowFunc
	}
}

// NewCookieMirror returns a mirror persisting under dataFolder and seeding
// cookies into jar for the given API origin. In production the cookie is
// Secure with SameSite=None; elsewhere it is SameSite=Lax.
func NewCookieMirror(dataFolder string, apiURL *url.URL, jar http.CookieJar, production bool, options ...CookieMirrorOption) (*CookieMirror, error) {
	if apiURL == nil {
		return nil, errors.New("[NewCookieMirror] apiURL is required")
	}
	if jar == nil {
		return nil, errors.New("[NewCookieMirror] cookie jar is required")
	}
	if err := os.MkdirAll(dataFolder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewCookieMirror] creating data folder")
	}

	cm := &CookieMirror{
		path:       filepath.Join(dataFolder, cookieFileName),
		apiURL:     apiURL,
		jar:        jar,
		production: production,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(cm)
	}

	// Re-seed the jar from a previous run's record, if any.
	if token, err := cm.ReadToken(); err == nil && token != "" {
		cm.seedJar(token, cm.nowTime().Add(cookieLifetime))
	}

	return cm, nil
}

func (cm *CookieMirror) WriteToken(token string) error {
	cm.lock.Lock()
	defer cm.lock.Unlock()

	expires := cm.nowTime().Add(cookieLifetime)
	record := cookieRecord{
		Value:    token,
		Expires:  expires,
		Secure:   cm.production,
		SameSite: cm.sameSite(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "[CookieMirror.WriteToken] encoding record")
	}
	if err := os.WriteFile(cm.path, data, 0o600); err != nil {
		return errors.Wrap(err, "[CookieMirror.WriteToken] writing record")
	}
	cm.seedJar(token, expires)
	return nil
}

func (cm *CookieMirror) ReadToken() (string, error) {
	data, err := os.ReadFile(cm.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "[CookieMirror.ReadToken] reading record")
	}
	var record cookieRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return "", errors.Wrap(err, "[CookieMirror.ReadToken] decoding record")
	}
	if cm.nowTime().After(record.Expires) {
		return "", nil
	}
	return record.Value, nil
}

func (cm *CookieMirror) Clear() error {
	cm.lock.Lock()
	defer cm.lock.Unlock()

	if err := os.Remove(cm.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[CookieMirror.Clear] removing record")
	}
	// Expire the live cookie in the jar as well.
	cm.jar.SetCookies(cm.apiURL, []*http.Cookie{{
		Name:    TokenCookieName,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	}})
	return nil
}

func (cm *CookieMirror) seedJar(token string, expires time.Time) {
	cookie := &http.Cookie{
		Name:    TokenCookieName,
		Value:   token,
		Path:    "/",
		Expires: expires,
		Secure:  cm.production,
	}
	if cm.production {
		cookie.SameSite = http.SameSiteNoneMode
	} else {
		cookie.SameSite = http.SameSiteLaxMode
	}
	cm.jar.SetCookies(cm.apiURL, []*http.Cookie{cookie})
}

func (cm *CookieMirror) sameSite() string {
	if cm.production {
		return "None"
	}
	return "Lax"
}
