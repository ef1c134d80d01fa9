package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	authmw "github.com/JustineRobert/society-community-savings-app-sub001/internal/middleware"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/models"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/repo"
	"github.com/JustineRobert/society-community-savings-app-sub001/internal/service"
	"github.com/JustineRobert/society-community-savings-app-sub001/pkg/logging"
)

type AuthHTTP struct {
	Svc *service.SessionService
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	AccessExp   int64        `json:"access_exp"`
	RefreshExp  int64        `json:"refresh_exp"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

func deviceInfo(c echo.Context) models.DeviceInfo {
	return models.DeviceInfo{
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
		DeviceID:  c.Request().Header.Get("X-Device-ID"),
	}
}

// mapAuthError hides which sub-reason failed; transient store trouble is
// the one case the client may retry.
func mapAuthError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrRevokedOrReused),
		errors.Is(err, service.ErrUserInactive),
		errors.Is(err, repo.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	default:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "try again later")
	}
}

func sessionJSON(c echo.Context, res *service.SessionResult) error {
	c.SetCookie(refreshCookie(res.RefreshToken, res.RefreshExp))
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken: res.AccessToken,
		AccessExp:   res.AccessExp.Unix(),
		RefreshExp:  res.RefreshExp.Unix(),
		User: userResponse{
			ID:    res.User.ID.String(),
			Email: res.User.Email,
			Roles: res.User.Roles,
		},
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password required")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password, deviceInfo(c))
	if err != nil {
		return mapAuthError(err)
	}

	return sessionJSON(c, res)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	cookie, err := c.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	res, err := h.Svc.Refresh(ctx, cookie.Value, deviceInfo(c))
	if err != nil {
		he := mapAuthError(err)
		if he.Code == http.StatusUnauthorized {
			c.SetCookie(deleteRefreshCookie())
		}
		return he
	}

	return sessionJSON(c, res)
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if cookie, err := c.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		if err := h.Svc.Logout(ctx, cookie.Value); err != nil {
			// The caller still ends up logged out; the revocation failure
			// is ours to chase.
			l.Error("logout_revoke_failed", "error", err)
		}
	}

	c.SetCookie(deleteRefreshCookie())
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) LogoutAll(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := authmw.UserFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	if err := h.Svc.LogoutAll(ctx, user.ID); err != nil {
		return mapAuthError(err)
	}

	c.SetCookie(deleteRefreshCookie())
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out everywhere"})
}

// ownerScope resolves which owner's sessions the call addresses: the
// caller's own by default, anyone's via ?owner_id= for admins.
func ownerScope(c echo.Context, caller *models.User) (uuid.UUID, error) {
	raw := c.QueryParam("owner_id")
	if raw == "" {
		return caller.ID, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid owner_id")
	}
	return id, nil
}

func (h *AuthHTTP) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()

	caller, ok := authmw.UserFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	ownerID, err := ownerScope(c, caller)
	if err != nil {
		return err
	}

	recs, err := h.Svc.ListSessions(ctx, caller, ownerID)
	if err != nil {
		return mapAuthError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"sessions": recs})
}

func (h *AuthHTTP) RevokeSession(c echo.Context) error {
	ctx := c.Request().Context()

	caller, ok := authmw.UserFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	ownerID, err := ownerScope(c, caller)
	if err != nil {
		return err
	}

	recordID := c.Param("id")
	if recordID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing session id")
	}

	if err := h.Svc.RevokeSession(ctx, caller, ownerID, recordID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no such session")
		}
		return mapAuthError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "session revoked"})
}

// Me is the authenticated identity probe.
func (h *AuthHTTP) Me(c echo.Context) error {
	user, ok := authmw.UserFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(http.StatusOK, userResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Roles: user.Roles,
	})
}
