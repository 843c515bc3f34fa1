package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/middleware"
	"github.com/iliyamo/huertohogar/internal/service"
)

// errInvalidUserID is returned when a protected route runs without JWTAuth.
var errInvalidUserID = errors.New("invalid user_id in context")

// getUserID returns the authenticated user set by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errInvalidUserID
	}
	return id, nil
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// writeError maps service errors to the API's JSON error shape.  Anything
// unrecognized is logged and reported as a generic 500.
func writeError(c echo.Context, log logrus.FieldLogger, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": ve.Fields})
	case errors.Is(err, service.ErrDuplicateEmail):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":  "email already registered",
			"fields": map[string]string{service.FieldEmail: "El correo ya está registrado"},
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	case errors.Is(err, service.ErrSessionEnded):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session ended"})
	case errors.Is(err, service.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, service.ErrProductNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	case errors.Is(err, service.ErrEmptyCart):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "cart is empty"})
	case errors.Is(err, service.ErrOrderProcessing):
		log.WithError(err).Error("checkout failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "order could not be processed"})
	}
	log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
