package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/config"
	"github.com/iliyamo/huertohogar/internal/database"
	"github.com/iliyamo/huertohogar/internal/handler"
	"github.com/iliyamo/huertohogar/internal/logging"
	"github.com/iliyamo/huertohogar/internal/metrics"
	"github.com/iliyamo/huertohogar/internal/middleware"
	"github.com/iliyamo/huertohogar/internal/observe"
	"github.com/iliyamo/huertohogar/internal/prefs"
	"github.com/iliyamo/huertohogar/internal/queue"
	"github.com/iliyamo/huertohogar/internal/repository"
	"github.com/iliyamo/huertohogar/internal/router"
	"github.com/iliyamo/huertohogar/internal/service"
	"github.com/iliyamo/huertohogar/internal/session"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	db, dialect, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, dialect); err != nil {
		return err
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable: response cache disabled, local rate limiter in use")
	} else {
		defer rdb.Close()
	}

	hub := observe.NewHub()
	users := repository.NewUserRepo(db, dialect, hub)
	products := repository.NewProductRepo(db, dialect, hub)
	carts := repository.NewCartRepo(db, dialect, hub)

	sm := session.NewManager(preferenceStore(cfg, rdb, log), log)
	if err := sm.Load(ctx); err != nil {
		return err
	}

	var publisher service.OrderPublisher = queue.NopPublisher{}
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL, log)
		if cfg.OrderConsumer {
			consumer := &queue.Consumer{URL: cfg.RabbitURL, Dir: filepath.Join(cfg.DataDir, "logs"), Log: log}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("order consumer stopped")
				}
			}()
		}
	}

	accounts := service.NewAccountService(users, service.NewAssetStore(cfg.ImagesDir()), cfg.BcryptCost, log)
	catalog := service.NewCatalogService(products, log)
	cart := service.NewCartService(carts, hub, sm, log)
	checkout := service.NewCheckoutService(db, users, carts, publisher, log)

	if cfg.SeedCatalog {
		if err := catalog.Seed(ctx, service.DefaultCatalog()); err != nil {
			return err
		}
	}

	cacheCfg := config.LoadCacheConfig()
	middleware.PurgeCatalogOnChange(ctx, cacheCfg, rdb, hub, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			}).Info("request")
			return nil
		},
	}))
	e.Use(metrics.Middleware())

	jwt := middleware.JWTAuth(cfg.JWTSecret, sm)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, accounts, sm, log), middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log), jwt)
	router.RegisterPublic(e, handler.NewCatalogHandler(catalog, log), middleware.NewRedisCache(cacheCfg, rdb, log))
	router.RegisterCustomer(e, jwt,
		handler.NewProfileHandler(accounts, log),
		handler.NewCartHandler(cart, log),
		handler.NewCheckoutHandler(checkout, log),
	)

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "driver": dialect.Name}).Info("listening")

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(addr) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// preferenceStore picks where the session user id is persisted.
func preferenceStore(cfg config.Config, rdb *redis.Client, log logrus.FieldLogger) prefs.Store {
	if cfg.SessionBackend == "redis" {
		if rdb != nil {
			return prefs.NewRedisStore(rdb, "huerto:prefs")
		}
		log.Warn("SESSION_BACKEND=redis but redis is unavailable; using the preference file")
	}
	return prefs.NewFileStore(cfg.PrefsPath())
}
