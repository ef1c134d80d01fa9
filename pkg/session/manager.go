// Package session is the consumer-side half of the credential lifecycle:
// it keeps the current token pair in memory, attaches the access token to
// outbound calls, and turns 401 responses into exactly one shared refresh.
package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/authclient"
)

var (
	// ErrNotAuthenticated means no session is held; the caller must log in.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrSessionExpired is the terminal refresh outcome: the server no
	// longer accepts our refresh credential and the manager has forced a
	// logout.
	ErrSessionExpired = errors.New("session: expired, login required")
)

type Manager struct {
	auth *authclient.Client
	http *http.Client

	mu         sync.Mutex
	access     string
	accessExp  time.Time
	refresh    string
	loggedOut  bool

	// sf makes sure that however many calls hit a 401 in the same window,
	// only one refresh request reaches the server.
	sf singleflight.Group

	onLogout func()

	refreshTimeout time.Duration
	backoffBase    time.Duration
	backoffCap     time.Duration
	maxAttempts    uint64
}

type Option func(*Manager)

// WithHTTPClient sets the client used for business calls made through Do.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.http = c }
}

// WithOnLogout registers the hook invoked when the manager transitions to
// unauthenticated outside an explicit Logout call.
func WithOnLogout(fn func()) Option {
	return func(m *Manager) { m.onLogout = fn }
}

// WithBackoff tunes the explicit-refresh retry schedule:
// min(base*2^(attempt-1), cap), up to maxAttempts total attempts.
func WithBackoff(base, cap time.Duration, maxAttempts uint64) Option {
	return func(m *Manager) {
		m.backoffBase = base
		m.backoffCap = cap
		m.maxAttempts = maxAttempts
	}
}

// WithRefreshTimeout bounds every refresh round-trip so initialization can
// never hang the caller.
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

func NewManager(auth *authclient.Client, opts ...Option) *Manager {
	m := &Manager{
		auth:           auth,
		http:           &http.Client{Timeout: 30 * time.Second},
		refreshTimeout: 5 * time.Second,
		backoffBase:    500 * time.Millisecond,
		backoffCap:     5 * time.Second,
		maxAttempts:    3,
	}
	for _, o := range opts {
		o(m)
	}
	// maxAttempts-1 feeds retry.WithMaxRetries; zero would underflow into
	// an effectively unlimited retry loop.
	if m.maxAttempts == 0 {
		m.maxAttempts = 1
	}
	return m
}

// Login establishes a session and arms the manager.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	sess, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	m.setSession(sess)
	return nil
}

// Logout revokes the refresh credential server-side (best effort) and
// clears local state. The OnLogout hook does not fire for explicit logout.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	refresh := m.refresh
	m.access, m.refresh = "", ""
	m.accessExp = time.Time{}
	m.loggedOut = true
	m.mu.Unlock()

	if refresh == "" {
		return nil
	}
	return m.auth.Logout(ctx, refresh)
}

func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access != ""
}

// AccessToken returns the current access token; empty when logged out.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access
}

func (m *Manager) setSession(sess *authclient.Session) {
	m.mu.Lock()
	m.access = sess.AccessToken
	m.accessExp = sess.AccessExp
	m.refresh = sess.RefreshToken
	m.loggedOut = false
	m.mu.Unlock()
}

// Do performs an outbound call with the access token attached. A 401
// response triggers one coalesced refresh and one retry; a 401 on the
// retried call is returned to the caller untouched.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	token := m.AccessToken()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	resp, err := m.send(req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := m.refreshShared(req.Context()); err != nil {
		return nil, err
	}

	return m.send(req, m.AccessToken())
}

func (m *Manager) send(req *http.Request, token string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	clone.Header.Set("Authorization", "Bearer "+token)
	return m.http.Do(clone)
}

// Refresh is the explicit (proactive) rotation path. Transient failures
// are retried with capped exponential backoff; a credential rejection is
// terminal and forces logout immediately.
func (m *Manager) Refresh(ctx context.Context) error {
	b := retry.WithCappedDuration(m.backoffCap, retry.NewExponential(m.backoffBase))
	b = retry.WithMaxRetries(m.maxAttempts-1, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := m.refreshShared(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrNotAuthenticated) {
			return err
		}
		if authclient.Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// refreshShared joins the in-flight refresh if one exists, otherwise
// starts it. The underlying call runs detached from any single caller's
// context so a canceled waiter cannot abort everyone else's refresh.
func (m *Manager) refreshShared(ctx context.Context) error {
	ch := m.sf.DoChan("refresh", func() (any, error) {
		return nil, m.refreshOnce()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (m *Manager) refreshOnce() error {
	m.mu.Lock()
	refresh := m.refresh
	m.mu.Unlock()

	if refresh == "" {
		return ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	sess, err := m.auth.Refresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, authclient.ErrUnauthenticated) {
			m.forceLogout()
			return ErrSessionExpired
		}
		return err
	}

	m.setSession(sess)
	return nil
}

// forceLogout clears the in-memory credentials and fires OnLogout once per
// session. This is the only transition to unauthenticated that is not
// user-initiated.
func (m *Manager) forceLogout() {
	m.mu.Lock()
	already := m.loggedOut
	m.access, m.refresh = "", ""
	m.accessExp = time.Time{}
	m.loggedOut = true
	cb := m.onLogout
	m.mu.Unlock()

	if !already && cb != nil {
		cb()
	}
}
