package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/Cryptoprojectsfun/advisorhub/internal/auth"
	"github.com/Cryptoprojectsfun/advisorhub/internal/config"
	"github.com/Cryptoprojectsfun/advisorhub/internal/database"
	"github.com/Cryptoprojectsfun/advisorhub/internal/handlers"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/middleware"
	"github.com/Cryptoprojectsfun/advisorhub/internal/monitoring"
	"github.com/Cryptoprojectsfun/advisorhub/internal/notify"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository/filestore"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository/pgstore"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository/redisstore"
	"github.com/Cryptoprojectsfun/advisorhub/internal/services/access"
	"github.com/Cryptoprojectsfun/advisorhub/internal/services/client"
	"github.com/Cryptoprojectsfun/advisorhub/internal/services/recommendation"
	"github.com/Cryptoprojectsfun/advisorhub/internal/services/subscription"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml configuration file")
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Errorw("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	backend, err := openBackend(ctx, cfg, redisClient)
	if err != nil {
		return err
	}

	metrics := monitoring.NewMetrics(cfg.App.Name)
	store := repository.NewStore(backend, log, repository.WithObserver(metrics), repository.WithTimeout(5*time.Second))
	defer store.Close()

	if err := store.Seed(ctx, time.Now()); err != nil {
		return fmt.Errorf("seed storage: %w", err)
	}

	sessions := auth.NewSessionStore(auth.WithSessionTTL(cfg.Auth.RefreshExpiry))
	go sessions.Cleanup(ctx, time.Minute)

	authSvc := auth.NewService(store, sessions,
		auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry, cfg.Auth.RefreshExpiry),
		log, auth.WithBcryptCost(cfg.Auth.BcryptCost))
	if _, created, err := authSvc.EnsureMainAdmin(ctx, cfg.Seed.MainAdminName, cfg.Seed.MainAdminEmail, cfg.Seed.MainAdminPassword); err != nil {
		return fmt.Errorf("seed main admin: %w", err)
	} else if created {
		log.Infow("Main admin created", "email", cfg.Seed.MainAdminEmail)
	}

	hub := notify.NewHub(log)
	go hub.Run(ctx)

	var publisher notify.Publisher = hub
	if redisClient != nil {
		relay := notify.NewRelay(redisClient, cfg.Redis.Channel, hub, log)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Warnw("Notification relay stopped", "error", err)
			}
		}()
		publisher = relay
	}

	resolver := access.NewResolver(store, log, access.WithRecorder(metrics), access.WithNotifier(publisher))
	recommendations := recommendation.NewService(store, log,
		recommendation.WithRecorder(metrics), recommendation.WithNotifier(publisher))

	health := monitoring.NewHealthChecker(30 * time.Second)
	health.RegisterCheck("storage", monitoring.PingCheck(store.BackendName(), store))
	if redisClient != nil {
		health.RegisterCheck("redis", monitoring.PingCheck("redis", pinger(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})))
	}
	go health.StartChecks(ctx)

	go metrics.StartMetricsCollection(ctx, 15*time.Second, monitoring.Gauges{
		Sessions:  authSvc.Sessions().Active,
		WSClients: hub.Connected,
		Dropped:   hub.Dropped,
	})

	errs := middleware.NewErrorWriter(log, metrics)

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, errs)
		go limiter.Cleanup(ctx)
	}

	router := handlers.NewRouter(handlers.Deps{
		Auth:            authSvc,
		Authenticator:   authSvc,
		Clients:         client.NewService(store, resolver, log),
		Recommendations: recommendations,
		Subscriptions:   subscription.NewService(store, log),
		Access:          resolver,
		Notifications:   handlers.NewNotificationHandler(publisher, hub, cfg.Server.AllowedOrigins, log, errs),
		Errors:          errs,
		Log:             log,
		RequestRecorder: metrics,
		RateLimiter:     limiter,
		Metrics:         metrics.MetricsHandler(),
		Health:          health.HTTPHandler(),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Server starting", "port", cfg.App.Port, "storage", store.BackendName(), "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// openBackend selects the storage backend named by the configuration.
func openBackend(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (repository.Backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return repository.NewMemoryBackend(), nil
	case config.DriverRedis:
		if redisClient == nil {
			return nil, errors.New("redis storage requires redis.addr")
		}
		return redisstore.New(redisClient, cfg.Redis.KeyPrefix), nil
	case config.DriverPostgres:
		db, err := database.Open(ctx, cfg.GetDatabaseURL(), database.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		pg := pgstore.New(db)
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return pg, nil
	default:
		fs, err := filestore.New(cfg.Storage.DataDir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}

type pinger func(ctx context.Context) error

func (p pinger) Ping(ctx context.Context) error { return p(ctx) }
