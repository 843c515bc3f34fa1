package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/config"
	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/service"
	"github.com/iliyamo/huertohogar/internal/session"
	"github.com/iliyamo/huertohogar/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Accounts *service.AccountService
	Session  *session.Manager
	Log      logrus.FieldLogger
}

func NewAuthHandler(cfg config.Config, accounts *service.AccountService, sm *session.Manager, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: accounts, Session: sm, Log: log.WithField("component", "auth-handler")}
}

// ----- DTOs -----

type registerReq struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User   model.User `json:"user"`
	Access tokenPart  `json:"access"`
}
type stateResp struct {
	Status string `json:"status"`
	UserID uint64 `json:"user_id,omitempty"`
}

// Register creates the user, makes it the session user and returns a token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Accounts.Register(ctx, service.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.startSession(ctx, c, id, http.StatusCreated)
}

// Login checks the credentials, makes the user the session user and
// returns a token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.startSession(ctx, c, id, http.StatusOK)
}

func (h *AuthHandler) startSession(ctx context.Context, c echo.Context, id uint64, status int) error {
	if err := h.Session.SetLoggedInUser(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	u, err := h.Accounts.Profile(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, id, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(status, authResp{User: u, Access: tokenPart{Token: tok.Token, Expires: tok.Exp}})
}

// Logout clears the session user.  Tokens issued to that user stop working
// on protected routes.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Session.Logout(c.Request().Context()); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// State reports the session state.
func (h *AuthHandler) State(c echo.Context) error {
	st := h.Session.State()
	resp := stateResp{Status: st.Status.String()}
	if id, ok := st.Authenticated(); ok {
		resp.UserID = id
	}
	return c.JSON(http.StatusOK, resp)
}
