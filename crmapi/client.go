package crmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// Client is the shared HTTP client for the TeamSales CRM API. One instance
// serves the whole process: the session manager installs or clears the
// bearer token, every other caller just issues requests through the typed
// bindings. Requests carry cookies for the API origin (the withCredentials
// behaviour browsers apply).
type Client struct {
	baseURL *url.URL
	http    *http.Client

	token atomic.Value // string, empty when unauthenticated

	observersLock sync.Mutex
	observers     map[uint64]func()
	nextObserver  uint64
}

// Option modifies a Client.
type Option func(*Client)

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely. The caller is
// then responsible for supplying a cookie jar if cookie-authenticated
// requests are needed.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a client rooted at the given API origin with a fresh cookie
// jar.
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[crmapi.New] parsing base URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("[crmapi.New] base URL must be absolute")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "[crmapi.New] creating cookie jar")
	}

	c := &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: defaultTimeout, Jar: jar},
		observers: make(map[uint64]func()),
	}
	c.token.Store("")

	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API origin this client is rooted at.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Jar returns the client's cookie jar, nil if the underlying HTTP client has
// none.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// SetToken installs the default Authorization header sent with every
// subsequent request. Only the session manager calls this.
func (c *Client) SetToken(token string) {
	c.token.Store(token)
}

// ClearToken removes the default Authorization header.
func (c *Client) ClearToken() {
	c.token.Store("")
}

// Token returns the currently installed bearer token, empty when
// unauthenticated.
func (c *Client) Token() string {
	return c.token.Load().(string)
}

// ObserverHandle detaches an unauthorized-observer when closed. Close is
// idempotent.
type ObserverHandle struct {
	client *Client
	id     uint64
	once   sync.Once
}

func (h *ObserverHandle) Close() {
	h.once.Do(func() {
		h.client.observersLock.Lock()
		delete(h.client.observers, h.id)
		h.client.observersLock.Unlock()
	})
}

// OnUnauthorized registers fn to run synchronously whenever any response,
// from any caller, comes back with status 401. The handle must be closed
// before registering a replacement, otherwise observers accumulate and each
// 401 fires them all.
func (c *Client) OnUnauthorized(fn func()) *ObserverHandle {
	c.observersLock.Lock()
	defer c.observersLock.Unlock()

	c.nextObserver++
	id := c.nextObserver
	c.observers[id] = fn
	return &ObserverHandle{client: c, id: id}
}

func (c *Client) notifyUnauthorized() {
	c.observersLock.Lock()
	fns := make([]func(), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.observersLock.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// do issues a JSON request, decodes a 2xx body into out (when non-nil) and
// converts everything else into the package error taxonomy. A 401 notifies
// the unauthorized observers before the error is returned, so the global
// teardown runs first and the caller still sees its own failure.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.do] encoding request body")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reqBody)
	if err != nil {
		return errors.Wrap(err, "[Client.do] building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[Client.do] %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		log.Debug().Str("method", method).Str("path", path).Msg("Unauthorized response from CRM API")
		c.notifyUnauthorized()
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newStatusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "[Client.do] decoding %s %s response", method, path)
		}
	}
	return nil
}
