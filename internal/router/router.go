package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/huertohogar/internal/handler"
	"github.com/iliyamo/huertohogar/internal/metrics"
)

// RegisterRoutes registers the operational endpoints: the health check used
// by load balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers the session endpoints under /v1/auth.  Register
// and login are rate limited; logout needs a token of the session user.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter, jwt echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	g.POST("/logout", a.Logout, jwt)
	g.GET("/state", a.State)
}

// RegisterPublic registers the catalog endpoints.  They need no token and
// their responses go through the response cache.
func RegisterPublic(e *echo.Echo, h *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", cache)
	g.GET("/products", h.List)
	g.GET("/products/:id", h.Get)
	g.GET("/categories", h.Categories)
}
