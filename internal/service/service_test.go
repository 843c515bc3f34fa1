package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/huertohogar/internal/database"
	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/observe"
	"github.com/iliyamo/huertohogar/internal/prefs"
	"github.com/iliyamo/huertohogar/internal/queue"
	"github.com/iliyamo/huertohogar/internal/repository"
	"github.com/iliyamo/huertohogar/internal/session"
)

// env wires every service over a real SQLite file, the way main does.
type env struct {
	db       *sql.DB
	hub      *observe.Hub
	log      logrus.FieldLogger
	hook     *test.Hook
	dir      string
	users    *repository.UserRepo
	products *repository.ProductRepo
	carts    *repository.CartRepo
	session  *session.Manager
	accounts *AccountService
	catalog  *CatalogService
	cart     *CartService
	checkout *CheckoutService
	events   *recordingPublisher
}

type recordingPublisher struct {
	events []queue.OrderConfirmedEvent
	err    error
}

func (p *recordingPublisher) PublishOrderConfirmed(_ context.Context, ev queue.OrderConfirmedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	db, d, err := database.Open(database.Options{Driver: database.DriverSQLite, Path: filepath.Join(dir, "store.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, d))

	log, hook := test.NewNullLogger()
	hub := observe.NewHub()
	e := &env{
		db:       db,
		hub:      hub,
		log:      log,
		hook:     hook,
		dir:      dir,
		users:    repository.NewUserRepo(db, d, hub),
		products: repository.NewProductRepo(db, d, hub),
		carts:    repository.NewCartRepo(db, d, hub),
		events:   &recordingPublisher{},
	}
	e.session = session.NewManager(prefs.NewFileStore(filepath.Join(dir, "user_prefs.json")), log)
	require.NoError(t, e.session.Load(context.Background()))
	e.accounts = NewAccountService(e.users, NewAssetStore(filepath.Join(dir, "images")), bcrypt.MinCost, log)
	e.catalog = NewCatalogService(e.products, log)
	e.cart = NewCartService(e.carts, hub, e.session, log)
	e.checkout = NewCheckoutService(db, e.users, e.carts, e.events, log)
	return e
}

// seedFruit seeds Apple (1500) and Lettuce (800) and returns their ids.
func (e *env) seedFruit(t *testing.T) (apple, lettuce uint64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.catalog.Seed(ctx, []model.Product{
		{Name: "Apple", Price: decimal.NewFromInt(1500), Category: "Fruta"},
		{Name: "Lettuce", Price: decimal.NewFromInt(800), Category: "Verdura"},
	}))
	all, err := e.catalog.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	return all[0].ID, all[1].ID
}

// login registers a user and makes it the session user.
func (e *env) login(t *testing.T, name, email string) uint64 {
	t.Helper()
	ctx := context.Background()
	id, err := e.accounts.Register(ctx, RegisterInput{Name: name, Email: email, Password: "password1", ConfirmPassword: "password1"})
	require.NoError(t, err)
	require.NoError(t, e.session.SetLoggedInUser(ctx, id))
	return id
}
