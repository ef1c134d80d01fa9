package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustineRobert/society-community-savings-app-sub001/internal/models"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/repo"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/signer"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/tokens"
)

var (
	testAccessSecret  = []byte("test-access-secret")
	testRefreshSecret = []byte("test-refresh-secret")
)

// mapLoader stands in for the external identity store.
type mapLoader map[uuid.UUID]*models.User

func (m mapLoader) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, repo.ErrNotFound
}

func newTestAuthenticator(t *testing.T, users ...*models.User) *Authenticator {
	t.Helper()

	sgn, err := signer.New(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	loader := mapLoader{}
	for _, u := range users {
		loader[u.ID] = u
	}
	return NewAuthenticator(sgn, loader)
}

func invoke(t *testing.T, a *Authenticator, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return rec, handler(c)
}

func signAccess(t *testing.T, u *models.User, expiresIn time.Duration) string {
	t.Helper()

	claims := tokens.AccessClaims{
		Kind:  tokens.KindAccess,
		Email: u.Email,
		Roles: u.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testAccessSecret)
	require.NoError(t, err)
	return token
}

func member(roles ...string) *models.User {
	if len(roles) == 0 {
		roles = []string{"member"}
	}
	return &models.User{ID: uuid.New(), Email: "m@example.com", Roles: roles, Active: true}
}

func TestRequireAuth_ValidToken(t *testing.T) {
	t.Parallel()

	u := member()
	a := newTestAuthenticator(t, u)

	sgn := a.Signer
	token, _, err := sgn.IssueAccess(u)
	require.NoError(t, err)

	rec, err := invoke(t, a, a.RequireRoles(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_Rejections(t *testing.T) {
	t.Parallel()

	u := member()
	inactive := member()
	inactive.Active = false
	a := newTestAuthenticator(t, u, inactive)

	unknown := member()

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer nonsense"},
		{name: "expired token", header: "Bearer " + signAccess(t, u, -time.Minute)},
		{name: "unknown user", header: "Bearer " + signAccess(t, unknown, time.Minute)},
		{name: "inactive user", header: "Bearer " + signAccess(t, inactive, time.Minute)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := invoke(t, a, a.RequireRoles(), tt.header)
			require.Error(t, err)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnauthorized, he.Code)
			// Every rejection looks the same to the caller.
			assert.Equal(t, "not authenticated", he.Message)
		})
	}
}

// The access credential stands alone: it is accepted just before its expiry
// and rejected just after, regardless of any server-side session state.
func TestRequireAuth_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	u := member()
	a := newTestAuthenticator(t, u)

	// Issued 14 minutes ago with a 15 minute TTL: one minute to live.
	_, err := invoke(t, a, a.RequireRoles(), "Bearer "+signAccess(t, u, time.Minute))
	assert.NoError(t, err)

	// Issued 16 minutes ago: one minute past expiry.
	_, err = invoke(t, a, a.RequireRoles(), "Bearer "+signAccess(t, u, -time.Minute))
	require.Error(t, err)
}

func TestRequireRoles_Gate(t *testing.T) {
	t.Parallel()

	plain := member()
	admin := member("member", "admin")
	a := newTestAuthenticator(t, plain, admin)

	mw := a.RequireRoles("admin")

	_, err := invoke(t, a, mw, "Bearer "+signAccess(t, plain, time.Minute))
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)

	rec, err := invoke(t, a, mw, "Bearer "+signAccess(t, admin, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHasAnyRole(t *testing.T) {
	t.Parallel()

	u := member("member", "treasurer")

	tests := []struct {
		name    string
		allowed []string
		want    bool
	}{
		{name: "empty allow-list admits anyone", allowed: nil, want: true},
		{name: "matching role", allowed: []string{"treasurer"}, want: true},
		{name: "one of several", allowed: []string{"admin", "member"}, want: true},
		{name: "no match", allowed: []string{"admin"}, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HasAnyRole(u, tt.allowed))
		})
	}
}
