// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bissquit/onestop-itsm/api/openapi"
	"github.com/bissquit/onestop-itsm/internal/admin"
	"github.com/bissquit/onestop-itsm/internal/assets"
	"github.com/bissquit/onestop-itsm/internal/changes"
	"github.com/bissquit/onestop-itsm/internal/config"
	"github.com/bissquit/onestop-itsm/internal/dashboard"
	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/identity"
	"github.com/bissquit/onestop-itsm/internal/identity/jwt"
	"github.com/bissquit/onestop-itsm/internal/incidents"
	"github.com/bissquit/onestop-itsm/internal/notifications"
	"github.com/bissquit/onestop-itsm/internal/notifications/email"
	"github.com/bissquit/onestop-itsm/internal/notifications/mattermost"
	"github.com/bissquit/onestop-itsm/internal/pkg/ctxlog"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/bissquit/onestop-itsm/internal/pkg/metrics"
	"github.com/bissquit/onestop-itsm/internal/pkg/postgres"
	"github.com/bissquit/onestop-itsm/internal/pkg/ratelimit"
	"github.com/bissquit/onestop-itsm/internal/seed"
	"github.com/bissquit/onestop-itsm/internal/slm"
	"github.com/bissquit/onestop-itsm/internal/version"
	"github.com/bissquit/onestop-itsm/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// App represents the application instance.
type App struct {
	config             *config.Config
	logger             *slog.Logger
	db                 *pgxpool.Pool
	poolCollector      *metrics.PoolCollector
	limiters           *limiters
	server             *http.Server
	metricsServer      *http.Server
	backgroundCancel   context.CancelFunc
	notificationQueue  *notifications.Queue
	notificationWorker *notifications.Worker
}

// New creates a new application instance. With the postgres driver it
// connects, applies migrations when configured to, and seeds empty tables.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	app := &App{
		config: cfg,
		logger: logger,
	}

	if cfg.Storage.Driver == config.DriverPostgres {
		db, err := app.connect(ctx)
		if err != nil {
			return nil, err
		}
		app.db = db
	}

	st := newStores(app.db)
	services := newServices(st)

	if cfg.Seed.Enabled {
		if err := loadSeed(ctx, st, services); err != nil {
			app.closeDB()
			return nil, err
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	app.backgroundCancel = bgCancel

	if app.db != nil {
		app.poolCollector = metrics.NewPoolCollector(app.db)
		if err := prometheus.Register(app.poolCollector); err != nil {
			logger.Warn("db pool metrics unavailable", "error", err)
			app.poolCollector = nil
		}
	}

	app.limiters = newLimiters(ctx, cfg.RateLimit)

	router, err := app.setupRouter(bgCtx, st, services)
	if err != nil {
		bgCancel()
		_ = app.limiters.Close()
		app.closeDB()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

func (a *App) connect(ctx context.Context) (*pgxpool.Pool, error) {
	dbCfg := a.config.Database

	connectCtx, cancel := context.WithTimeout(ctx, dbCfg.ConnectTimeout)
	defer cancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             dbCfg.URL,
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
		ConnectAttempts: dbCfg.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if dbCfg.AutoMigrate {
		if err := postgres.Migrate(dbCfg.URL, migrations.FS, ".", postgres.MigrateUp); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	return db, nil
}

func loadSeed(ctx context.Context, st *stores, svc *services) error {
	fixture, err := seed.Default()
	if err != nil {
		return fmt.Errorf("load seed fixture: %w", err)
	}

	loader := seed.NewLoader(seed.Targets{
		Incidents: st.incidents,
		Directory: svc.admin,
		Assets:    svc.assets,
		Changes:   svc.changes,
		SLAs:      svc.slas,
	})
	if _, err := loader.Load(ctx, fixture); err != nil {
		return fmt.Errorf("seed stores: %w", err)
	}
	return nil
}

// Run serves HTTP until ctx is cancelled or a server fails, then shuts
// everything down within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("starting server",
			"host", a.config.Server.Host,
			"port", a.config.Server.Port,
			"storage", a.config.Storage.Driver,
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	// HTTP goes first so nothing enqueues after the worker stops.
	var g errgroup.Group
	g.Go(func() error {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})
	err := g.Wait()

	if a.notificationWorker != nil {
		a.notificationWorker.Stop()
		a.notificationQueue.Close()
	}

	a.backgroundCancel()
	if cerr := a.limiters.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close rate limiters: %w", cerr))
	}
	a.closeDB()

	return err
}

func (a *App) closeDB() {
	if a.poolCollector != nil {
		prometheus.Unregister(a.poolCollector)
		a.poolCollector = nil
	}
	if a.db != nil {
		a.db.Close()
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// NotificationQueue returns the delivery queue, or nil when notifications
// are disabled. Used in tests.
func (a *App) NotificationQueue() *notifications.Queue {
	return a.notificationQueue
}

func (a *App) setupRouter(ctx context.Context, st *stores, svc *services) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})
	r.Get("/docs", docsHandler)

	var notifier incidents.Notifier
	if a.config.Notifications.Enabled {
		n, err := a.setupNotifications(ctx, svc.admin)
		if err != nil {
			return nil, err
		}
		notifier = n
	}

	incidentsService := incidents.NewService(st.incidents, notifier)

	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:           a.config.JWT.SecretKey,
		AccessTokenDuration: a.config.JWT.AccessTokenDuration,
	})
	identityService := identity.NewService(svc.admin, jwtAuth)

	identityHandler := identity.NewHandler(identityService, a.limiters.login)
	incidentsHandler := incidents.NewHandler(incidentsService)
	assetsHandler := assets.NewHandler(svc.assets)
	changesHandler := changes.NewHandler(svc.changes)
	slmHandler := slm.NewHandler(svc.slas)
	adminHandler := admin.NewHandler(svc.admin)
	dashboardHandler := dashboard.NewHandler(
		dashboard.NewService(incidentsService, svc.assets, svc.changes, svc.slas),
	)

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))
			if a.limiters.api != nil {
				r.Use(ratelimit.Middleware(a.limiters.api, apiLimiterName, viewerKey))
			}

			identityHandler.RegisterProtectedRoutes(r)
			dashboardHandler.RegisterRoutes(r)
			incidentsHandler.RegisterRoutes(r)
			assetsHandler.RegisterRoutes(r)
			changesHandler.RegisterRoutes(r)
			slmHandler.RegisterRoutes(r)
			adminHandler.RegisterDirectoryRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequirePermission(domain.PermManageUsers))
				adminHandler.RegisterRoutes(r)
			})
		})
	})

	return r, nil
}

func (a *App) setupNotifications(ctx context.Context, directory notifications.UserDirectory) (*notifications.Notifier, error) {
	cfg := a.config.Notifications

	slog.Info("notifications configured",
		"email_enabled", cfg.Email.Enabled,
		"mattermost_enabled", cfg.Mattermost.Enabled,
		"mattermost_groups", len(cfg.Mattermost.Webhooks),
	)

	var senders []notifications.Sender
	if cfg.Email.Enabled {
		emailSender, err := email.NewSender(email.Config{
			SMTPHost:     cfg.Email.SMTPHost,
			SMTPPort:     cfg.Email.SMTPPort,
			SMTPUser:     cfg.Email.SMTPUser,
			SMTPPassword: cfg.Email.SMTPPassword,
			FromAddress:  cfg.Email.FromAddress,
		})
		if err != nil {
			return nil, fmt.Errorf("create email sender: %w", err)
		}
		senders = append(senders, emailSender)
	}

	var webhooks map[string]string
	if cfg.Mattermost.Enabled {
		senders = append(senders, mattermost.NewSender(mattermost.Config{
			Username: cfg.Mattermost.Username,
			IconURL:  cfg.Mattermost.IconURL,
		}))
		webhooks = cfg.Mattermost.Webhooks
	}

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	queue := notifications.NewQueue(cfg.Worker.QueueSize)
	worker := notifications.NewWorker(notifications.WorkerConfig{
		NumWorkers:        cfg.Worker.NumWorkers,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}, queue, notifications.NewDispatcher(senders...), renderer)
	worker.Start(ctx)

	a.notificationQueue = queue
	a.notificationWorker = worker

	return notifications.NewNotifier(notifications.NotifierConfig{
		BaseURL:       cfg.BaseURL,
		GroupWebhooks: webhooks,
		EmailCallers:  cfg.Email.Enabled,
		MaxAttempts:   cfg.Retry.MaxAttempts,
	}, queue, directory), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if a.db != nil {
		if err := a.db.Ping(ctx); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func docsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>OneStop ITSM API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
