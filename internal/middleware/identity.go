package middleware

// identity.go holds the request-scoped identity shared by the auth, cache
// and rate limit middleware.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// UserID returns the authenticated user stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// userKey is the identity used in rate limit keys: the user id, or
// "guest" for anonymous requests.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
