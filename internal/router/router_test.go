package router

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/huertohogar/internal/config"
	"github.com/iliyamo/huertohogar/internal/database"
	"github.com/iliyamo/huertohogar/internal/handler"
	"github.com/iliyamo/huertohogar/internal/middleware"
	"github.com/iliyamo/huertohogar/internal/observe"
	"github.com/iliyamo/huertohogar/internal/prefs"
	"github.com/iliyamo/huertohogar/internal/queue"
	"github.com/iliyamo/huertohogar/internal/repository"
	"github.com/iliyamo/huertohogar/internal/service"
	"github.com/iliyamo/huertohogar/internal/session"
)

type app struct {
	e       *echo.Echo
	dataDir string
	session *session.Manager
	mr      *miniredis.Miniredis
}

// newApp assembles the server the way cmd/server does, over a temporary
// data directory and an in-memory Redis.
func newApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		DataDir:      dir,
		DBDriver:     database.DriverSQLite,
		DBPath:       filepath.Join(dir, "huertohogar.db"),
		JWTSecret:    "test-secret",
		AccessTTLMin: 15,
		BcryptCost:   bcrypt.MinCost,
	}
	db, d, err := database.Open(database.Options{Driver: cfg.DBDriver, Path: cfg.DBPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, d))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log, _ := test.NewNullLogger()
	hub := observe.NewHub()
	users := repository.NewUserRepo(db, d, hub)
	products := repository.NewProductRepo(db, d, hub)
	carts := repository.NewCartRepo(db, d, hub)
	sm := session.NewManager(prefs.NewFileStore(cfg.PrefsPath()), log)
	require.NoError(t, sm.Load(context.Background()))

	accounts := service.NewAccountService(users, service.NewAssetStore(cfg.ImagesDir()), cfg.BcryptCost, log)
	catalog := service.NewCatalogService(products, log)
	require.NoError(t, catalog.Seed(context.Background(), service.DefaultCatalog()))
	cart := service.NewCartService(carts, hub, sm, log)
	checkout := service.NewCheckoutService(db, users, carts, queue.NopPublisher{}, log)

	cacheCfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "t:cache", MaxBodyBytes: 1 << 20}
	rlCfg := config.RateLimitConfig{Enabled: true, Capacity: 100, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "t:rl"}

	e := echo.New()
	jwt := middleware.JWTAuth(cfg.JWTSecret, sm)
	RegisterRoutes(e, db)
	RegisterAuth(e, handler.NewAuthHandler(cfg, accounts, sm, log), middleware.NewTokenBucket(rlCfg, rdb, log), jwt)
	RegisterPublic(e, handler.NewCatalogHandler(catalog, log), middleware.NewRedisCache(cacheCfg, rdb, log))
	cartHandler := handler.NewCartHandler(cart, log)
	cartHandler.KeepAlive = 50 * time.Millisecond
	RegisterCustomer(e, jwt, handler.NewProfileHandler(accounts, log), cartHandler, handler.NewCheckoutHandler(checkout, log))

	return &app{e: e, dataDir: dir, session: sm, mr: mr}
}

func (a *app) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type authBody struct {
	User struct {
		ID    uint64 `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
}

func (a *app) register(t *testing.T, name, email string) authBody {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "password1", "confirm_password": "password1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](t, rec)
}

type productBody struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	PriceDisplay string `json:"price_display"`
}

func (a *app) productID(t *testing.T, name string) uint64 {
	t.Helper()
	for _, p := range decode[[]productBody](t, a.do(t, http.MethodGet, "/v1/products", "", nil)) {
		if p.Name == name {
			return p.ID
		}
	}
	t.Fatalf("product %q not found", name)
	return 0
}

type cartBody struct {
	UserID uint64 `json:"user_id"`
	Items  []struct {
		Product  productBody `json:"product"`
		Quantity int         `json:"quantity"`
	} `json:"items"`
	Total        string `json:"total"`
	TotalDisplay string `json:"total_display"`
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = a.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCatalogRoutes(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/v1/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	all := decode[[]productBody](t, rec)
	require.Len(t, all, 4)
	assert.Equal(t, "Huevos de Campo", all[0].Name)
	assert.Equal(t, "$ 3.500", all[0].PriceDisplay)

	rec = a.do(t, http.MethodGet, "/v1/products", "", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	fruit := decode[[]productBody](t, a.do(t, http.MethodGet, "/v1/products?category=Fruta", "", nil))
	require.Len(t, fruit, 1)
	assert.Equal(t, "Manzanas Fuji", fruit[0].Name)

	rec = a.do(t, http.MethodGet, "/v1/products/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodGet, "/v1/products/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cats := decode[[]string](t, a.do(t, http.MethodGet, "/v1/categories", "", nil))
	assert.Equal(t, []string{"Despensa", "Fruta", "Verdura"}, cats)
}

func TestRegisterLoginLogout(t *testing.T) {
	a := newApp(t)

	state := decode[map[string]any](t, a.do(t, http.MethodGet, "/v1/auth/state", "", nil))
	assert.Equal(t, "unauthenticated", state["status"])

	ana := a.register(t, "Ana", "ana@x.com")
	assert.Equal(t, "ana@x.com", ana.User.Email)
	assert.NotEmpty(t, ana.Access.Token)

	state = decode[map[string]any](t, a.do(t, http.MethodGet, "/v1/auth/state", "", nil))
	assert.Equal(t, "authenticated", state["status"])
	assert.EqualValues(t, ana.User.ID, state["user_id"])

	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": "Ana", "email": "ana@x.com", "password": "password1", "confirm_password": "password1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["fields"], "email")

	rec = a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{"name": "", "email": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ana@x.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/me", ana.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/logout", ana.Access.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// the token outlives the session but is no longer accepted
	rec = a.do(t, http.MethodGet, "/v1/me", ana.Access.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ana@x.com", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[authBody](t, rec)
	assert.Equal(t, ana.User.ID, again.User.ID)
}

func TestSwitchingUserRevokesPreviousToken(t *testing.T) {
	a := newApp(t)
	ana := a.register(t, "Ana", "ana@x.com")
	bob := a.register(t, "Bob", "bob@x.com")

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/v1/cart", ana.Access.Token, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/v1/cart", bob.Access.Token, nil).Code)
}

func TestCartAndCheckoutFlow(t *testing.T) {
	a := newApp(t)
	ana := a.register(t, "Ana", "ana@x.com")
	tok := ana.Access.Token
	apple := a.productID(t, "Manzanas Fuji")
	lettuce := a.productID(t, "Lechuga Costina")

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodPost, "/v1/cart/items/1", "", nil).Code)

	a.do(t, http.MethodPost, "/v1/cart/items/"+itoa(apple), tok, nil)
	a.do(t, http.MethodPost, "/v1/cart/items/"+itoa(apple), tok, nil)
	rec := a.do(t, http.MethodPost, "/v1/cart/items/"+itoa(lettuce), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[cartBody](t, rec)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "Lechuga Costina", cart.Items[0].Product.Name)
	assert.Equal(t, 2, cart.Items[1].Quantity)
	assert.Equal(t, "$ 3.800", cart.TotalDisplay)

	rec = a.do(t, http.MethodPost, "/v1/cart/items/999", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPatch, "/v1/cart/items/"+itoa(apple), tok, map[string]int{"delta": -2})
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[cartBody](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Lechuga Costina", cart.Items[0].Product.Name)

	// checkout needs an address
	co := decode[map[string]any](t, a.do(t, http.MethodGet, "/v1/checkout", tok, nil))
	assert.Equal(t, false, co["ready"])
	rec = a.do(t, http.MethodPost, "/v1/checkout/confirm", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["fields"], "address")

	rec = a.do(t, http.MethodPut, "/v1/me", tok, map[string]string{"name": "Ana", "address": "Calle 1, Santiago"})
	require.Equal(t, http.StatusOK, rec.Code)

	co = decode[map[string]any](t, a.do(t, http.MethodGet, "/v1/checkout", tok, nil))
	assert.Equal(t, true, co["ready"])

	rec = a.do(t, http.MethodPost, "/v1/checkout/confirm", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[map[string]any](t, rec)
	assert.NotEmpty(t, receipt["order_id"])
	assert.Equal(t, "$ 800", receipt["total_display"])

	cart = decode[cartBody](t, a.do(t, http.MethodGet, "/v1/cart", tok, nil))
	assert.Empty(t, cart.Items)

	rec = a.do(t, http.MethodPost, "/v1/checkout/confirm", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodDelete, "/v1/cart/items/"+itoa(lettuce), tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileImageUpload(t *testing.T) {
	a := newApp(t)
	ana := a.register(t, "Ana", "ana@x.com")

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("name", "Ana María"))
	require.NoError(t, w.WriteField("address", "Calle 1"))
	fw, err := w.CreateFormFile("image", "me.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPut, "/v1/me", &body)
	r.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	r.Header.Set("Authorization", "Bearer "+ana.Access.Token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	u := decode[map[string]any](t, rec)
	assert.Equal(t, "Ana María", u["name"])
	ref, _ := u["image_ref"].(string)
	require.NotEmpty(t, ref)
	assert.Equal(t, filepath.Join(a.dataDir, "images"), filepath.Dir(ref))
	b, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))
	_, hasHash := u["password_hash"]
	assert.False(t, hasHash)
}

func TestCartStream(t *testing.T) {
	a := newApp(t)
	ana := a.register(t, "Ana", "ana@x.com")
	apple := a.productID(t, "Manzanas Fuji")

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/v1/cart/stream", nil).WithContext(ctx)
	r.Header.Set("Authorization", "Bearer "+ana.Access.Token)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.e.ServeHTTP(rec, r)
	}()

	// log in as someone else after a moment: the stream must end on its own
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/v1/cart/items/"+itoa(apple), ana.Access.Token, nil).Code)
	time.Sleep(100 * time.Millisecond)
	a.register(t, "Bob", "bob@x.com")

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		cancel()
		<-done
		t.Fatal("stream did not end after the session changed")
	}
	cancel()

	out := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(out, "event: cart\n"), out)
	assert.Contains(t, out, "Manzanas Fuji")
	assert.Contains(t, out, "event: session\n")
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }

func TestCartQuantityStaysReadable(t *testing.T) {
	a := newApp(t)
	tok := a.register(t, "Ana", "ana@x.com").Access.Token
	apple := itoa(a.productID(t, "Manzanas Fuji"))

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/v1/cart/items/"+apple, tok, nil).Code)
	rec := a.do(t, http.MethodPatch, "/v1/cart/items/"+apple, tok, map[string]int64{"delta": math.MaxInt64 - 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["fields"], "quantity")

	rec = a.do(t, http.MethodPost, "/v1/cart/items/"+apple, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decode[cartBody](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	rec = a.do(t, http.MethodGet, "/v1/checkout", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
