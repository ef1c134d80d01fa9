package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const refreshCookieName = "refreshToken"

// ErrUnauthenticated is the terminal failure class: the server rejected
// the credential itself, so retrying the same call cannot help.
var ErrUnauthenticated = errors.New("authclient: not authenticated")

// StatusError covers unexpected HTTP statuses that are not a credential
// rejection.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("authclient: unexpected status %d", e.Code)
}

// Retryable classifies failures for the backoff loop: network trouble,
// 5xx and rate-limiting are worth retrying, a rejected credential is not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthenticated) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	// Anything else is transport-level (dial, reset, timeout).
	return true
}

// Client talks to the auth service's session endpoints. It is the thin
// wire layer; coalescing and retries live in pkg/session.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(authServiceURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Session is one issued credential pair. The refresh token arrives in the
// scoped cookie; the access token in the response body.
type Session struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
	UserID       string
	Email        string
	Roles        []string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	AccessExp   int64  `json:"access_exp"`
	RefreshExp  int64  `json:"refresh_exp"`
	User        struct {
		ID    string   `json:"id"`
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	} `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doSession(req)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: refreshToken})

	return c.doSession(req)
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if refreshToken != "" {
		req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: refreshToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (c *Client) doSession(req *http.Request) (*Session, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthenticated
	default:
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	sess := &Session{
		AccessToken: body.AccessToken,
		AccessExp:   time.Unix(body.AccessExp, 0),
		RefreshExp:  time.Unix(body.RefreshExp, 0),
		UserID:      body.User.ID,
		Email:       body.User.Email,
		Roles:       body.User.Roles,
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == refreshCookieName {
			sess.RefreshToken = ck.Value
		}
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		return nil, fmt.Errorf("incomplete session in response")
	}
	return sess, nil
}
