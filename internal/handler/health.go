package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health returns a health-check endpoint for load balancers and monitoring.
// It answers 200 "ok" while the store is reachable and 503 otherwise.
func Health(db *sql.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "store unavailable")
		}
		return c.String(http.StatusOK, "ok")
	}
}
