package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	appscans "github.com/bryanwahyu/skinlytics/internal/application/scans"
	"github.com/bryanwahyu/skinlytics/internal/config"
	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/infra/ai/openai"
	"github.com/bryanwahyu/skinlytics/internal/infra/ai/predict"
	"github.com/bryanwahyu/skinlytics/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/skinlytics/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/skinlytics/internal/infra/db/postgres"
	"github.com/bryanwahyu/skinlytics/internal/infra/httpserver"
	"github.com/bryanwahyu/skinlytics/internal/infra/imageload"
	minioStore "github.com/bryanwahyu/skinlytics/internal/infra/storage"
	"github.com/bryanwahyu/skinlytics/internal/log"
	"github.com/bryanwahyu/skinlytics/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := log.Init(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Info("config loaded", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]middleware.HealthChecker{}

	repo, db, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checks["database"] = &middleware.DatabaseHealthChecker{DB: db}
	}

	store, err := appscans.NewStore(ctx, repo, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	checks["store"] = middleware.CheckFunc(func(ctx context.Context) error {
		_, err := store.QueryAll(ctx)
		return err
	})

	loaders := imageload.NewRouter()
	roots := cfg.Upload.Roots
	if len(roots) > 0 {
		roots = append(roots, cfg.Upload.Dir)
	}
	loaders.Register("file", &imageload.FileLoader{
		CacheDir: cfg.Upload.CacheDir,
		Roots:    roots,
		MaxBytes: cfg.Upload.MaxBytes,
	})
	var stager httpserver.UploadStager = &imageload.DirStager{Dir: cfg.Upload.Dir}

	if cfg.Minio.Enabled {
		objects, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return err
		}
		objects.SetMaxBytes(cfg.Upload.MaxBytes)
		loaders.Register(minioStore.Scheme, objects)
		stager = objects
		checks["minio"] = middleware.CheckFunc(objects.Ping)
	}

	ctrl := appscans.NewController(loaders, newAnalyzer(cfg, logger), store, nil, logger)
	defer ctrl.Close()

	go middleware.TrackScans(ctrl.Watch())
	go middleware.TrackHistory(store.Subscribe())

	var ready atomic.Bool
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	defer limiter.Close()

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Logging(log.Component("http")))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	mux.Use(middleware.RateLimit(limiter))

	mux.Get("/health", middleware.HealthHandler(checks))
	mux.Get("/ready", middleware.ReadinessHandler(ready.Load))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(ctrl, store, httpserver.Options{
		Stager:         stager,
		Schemes:        loaders.Schemes(),
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Logger:         logger,
	}))

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		ready.Store(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ready.Store(false)
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadConfig reads CONFIG_PATH (default config.yaml). A missing default file
// falls back to built-in defaults plus env overrides.
func loadConfig() (*config.Config, error) {
	path, explicit := os.LookupEnv("CONFIG_PATH")
	if !explicit || path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg = config.Default()
		return cfg, cfg.ApplyEnv(os.LookupEnv)
	}
	return cfg, err
}

func openRepository(ctx context.Context, cfg *config.Config) (domain.Repository, *sql.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverMySQL:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return mysqlp.NewScanRepository(db), db, nil
	case config.DriverPostgres:
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := postgresp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgresp.NewScanRepository(db), db, nil
	default:
		return memory.NewScanRepository(), nil, nil
	}
}

func newAnalyzer(cfg *config.Config, logger *slog.Logger) domain.Analyzer {
	if cfg.Inference.Provider == config.ProviderOpenAI {
		o := cfg.Inference.OpenAI
		return openai.NewClient(o.APIKey, o.Model, o.BaseURL, cfg.Inference.Timeout, logger)
	}
	opts := []predict.Option{
		predict.WithTimeout(cfg.Inference.Timeout),
		predict.WithLogger(logger),
	}
	if cfg.Inference.UserAgent != "" {
		opts = append(opts, predict.WithUserAgent(cfg.Inference.UserAgent))
	}
	return predict.NewClient(cfg.Inference.BaseURL, opts...)
}
