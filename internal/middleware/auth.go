package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/JustineRobert/society-community-savings-app-sub001/internal/models"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/repo"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/signer"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/logging"
)

const userContextKey = "auth_user"

// UserLoader is the identity-store read this gate depends on.
type UserLoader interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticator verifies the bearer access token on protected calls and
// loads the current user. It reads identity state but never mutates it,
// and never touches refresh records.
type Authenticator struct {
	Signer *signer.Signer
	Users  UserLoader
}

func NewAuthenticator(s *signer.Signer, users UserLoader) *Authenticator {
	return &Authenticator{Signer: s, Users: users}
}

// notAuthenticated is the single externally visible failure. Expired,
// forged, revoked-subject and inactive-user all look identical to the
// caller; logs keep the real reason.
func notAuthenticated() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
}

func (a *Authenticator) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return a.RequireRoles()(next)
}

// RequireRoles gates a route on the caller holding at least one of the
// given roles. With no roles listed, any authenticated user passes.
func (a *Authenticator) RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("mw", "authenticate")

			token := bearerToken(c)
			if token == "" {
				l.Warn("auth_failed", "reason", "missing token")
				return notAuthenticated()
			}

			claims, err := a.Signer.VerifyAccess(token)
			if err != nil {
				l.Warn("auth_failed", "reason", "invalid or expired token", "error", err)
				return notAuthenticated()
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				l.Warn("auth_failed", "reason", "malformed subject")
				return notAuthenticated()
			}

			user, err := a.Users.FindUserByID(ctx, userID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					l.Warn("auth_failed", "reason", "unknown user", "user_id", userID)
					return notAuthenticated()
				}
				return echo.NewHTTPError(http.StatusServiceUnavailable, "try again later")
			}
			if !user.Active {
				// The token itself is cryptographically fine; the account
				// is suspended.
				l.Warn("auth_failed", "reason", "user inactive", "user_id", userID)
				return notAuthenticated()
			}

			if !HasAnyRole(user, roles) {
				l.Warn("auth_forbidden", "user_id", userID, "required", roles)
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}

			c.Set(userContextKey, user)
			c.Set("user_id", user.ID.String())
			c.Set("roles", user.Roles)
			return next(c)
		}
	}
}

// HasAnyRole is the pure role predicate: an empty allow-list admits any
// authenticated identity.
func HasAnyRole(u *models.User, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// UserFromContext returns the authenticated user set by RequireRoles.
func UserFromContext(c echo.Context) (*models.User, bool) {
	u, ok := c.Get(userContextKey).(*models.User)
	return u, ok
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
