package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/JustineRobert/society-community-savings-app-sub001/internal/middleware"
)

type Deps struct {
	AuthHandler   *AuthHTTP
	Authenticator *authmw.Authenticator
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	auth := e.Group("/auth")

	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)

	private := auth.Group("")
	private.Use(d.Authenticator.RequireAuth)

	private.POST("/logout_all", d.AuthHandler.LogoutAll)
	private.GET("/sessions", d.AuthHandler.ListSessions)
	private.DELETE("/sessions/:id", d.AuthHandler.RevokeSession)
	private.GET("/me", d.AuthHandler.Me)
}
