package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/huertohogar/internal/utils"
)

// SessionUser reports the user logged in on this install.
type SessionUser interface {
	CurrentUser() (uint64, bool)
}

// JWTAuth validates the Bearer access token and requires its subject to be
// the current session user; a token issued before a logout or a switch to
// another account is refused.  On success the user id is available to
// handlers through UserID.
func JWTAuth(secret string, session SessionUser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			id, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			// the token must belong to whoever is logged in right now
			current, ok := session.CurrentUser()
			if !ok || current != id {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session ended"})
			}
			c.Set(userIDKey, id)
			return next(c)
		}
	}
}
