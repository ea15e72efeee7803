package main // Entry point package

import (
	"context"       // startup and shutdown deadlines
	"database/sql"  // handle shared by the store and the health check
	"errors"        // distinguishes a clean server close
	"net/http"      // http.ErrServerClosed
	"os"            // signals
	"os/signal"     // graceful shutdown on SIGINT/SIGTERM
	"syscall"       // SIGTERM
	"time"          // shutdown deadline

	"github.com/joho/godotenv"        // .env loading for local runs
	"github.com/labstack/gommon/log"  // Echo's logger

	"github.com/iliyamo/tour-booking/internal/cache"      // versioned Redis cache
	"github.com/iliyamo/tour-booking/internal/config"     // environment config
	"github.com/iliyamo/tour-booking/internal/database"   // MySQL connection and schema
	"github.com/iliyamo/tour-booking/internal/gateway"    // SSLCommerz client
	"github.com/iliyamo/tour-booking/internal/handler"    // health check types
	"github.com/iliyamo/tour-booking/internal/queue"      // RabbitMQ publisher and consumer
	"github.com/iliyamo/tour-booking/internal/repository" // store interfaces and MySQL store
	"github.com/iliyamo/tour-booking/internal/repository/memory"
	"github.com/iliyamo/tour-booking/internal/router" // HTTP routes
	"github.com/iliyamo/tour-booking/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("could not read .env: %v", err)
	}
	cfg := config.Load()
	cacheCfg := config.LoadCacheConfig()
	rateCfg := config.LoadRateLimitConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db := openStore(ctx, cfg)
	if db != nil {
		defer db.Close()
	}

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		log.Warnf("caching and rate limiting disabled: %v", err)
	} else {
		defer rdb.Close()
	}

	health := handler.Health{Required: map[string]handler.Pinger{}, Optional: map[string]handler.Pinger{"redis": nil}}
	if db != nil {
		health.Required["mysql"] = handler.PingFunc(db.PingContext)
	}
	if rdb != nil {
		health.Optional["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	var events service.EventPublisher // stays a nil interface when disabled
	if cfg.EventsEnabled {
		events = queue.Publisher{URL: cfg.RabbitURL}
		go func() {
			c := queue.Consumer{URL: cfg.RabbitURL, Dir: cfg.EventLogDir}
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("event consumer stopped: %v", err)
			}
		}()
	}

	e := router.New(router.Deps{
		Cfg:      cfg,
		CacheCfg: cacheCfg,
		RateCfg:  rateCfg,
		Store:    store,
		Redis:    rdb,
		Cache:    cache.New(rdb, cacheCfg.TTL),
		Gateway:  gateway.NewClient(cfg.Payment.Gateway()),
		Events:   events,
		Health:   health,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Infof("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

// openStore returns the configured store.  The *sql.DB is nil for the
// in-memory store.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, *sql.DB) {
	if cfg.DBDriver == "memory" {
		log.Warn("using the in-memory store: data is lost on restart")
		return memory.New(), nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate failed: %v", err)
		}
	}
	return repository.NewSQLStore(db), db
}
