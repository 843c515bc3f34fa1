package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/service"
)

// ProfileHandler serves the logged-in user's profile.
type ProfileHandler struct {
	Accounts *service.AccountService
	Log      logrus.FieldLogger
}

func NewProfileHandler(accounts *service.AccountService, log logrus.FieldLogger) *ProfileHandler {
	return &ProfileHandler{Accounts: accounts, Log: log.WithField("component", "profile-handler")}
}

type profileReq struct {
	Name    string `json:"name" form:"name"`
	Address string `json:"address" form:"address"`
}

// Get returns the profile.
func (h *ProfileHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Accounts.Profile(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Update saves name and address.  A multipart request may carry a new
// picture in the "image" field; JSON requests leave the picture unchanged.
func (h *ProfileHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	in := service.ProfileInput{Name: req.Name, Address: req.Address}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("image")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid image"})
		}
		if fh != nil {
			f, err := fh.Open()
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid image"})
			}
			defer f.Close()
			in.Image = &service.ImageUpload{Filename: fh.Filename, Body: f}
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	u, err := h.Accounts.UpdateProfile(ctx, uid, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}
