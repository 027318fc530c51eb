// Package server assembles the accounts service: storage, services, the
// realtime gateway and the HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/middleware/statusgate"
	"github.com/goliatone/go-accounts/persistence"
	"github.com/goliatone/go-accounts/realtime"
)

type App struct {
	config  *config.Config
	logger  *accounts.ZapLogger
	started time.Time

	db       *bun.DB
	repo     accounts.RepositoryManager
	auther   *accounts.Auther
	guards   *accounts.RouteAuthenticator
	accounts *accounts.AccountService
	admin    *accounts.ModerationService
	activity accounts.ActivitySink

	registry  *realtime.Registry
	gateway   *realtime.Gateway
	bridge    *realtime.Bridge
	verifier  *realtime.Verifier
	metrics   *prometheus.Registry
	userToken *accounts.TokenServiceImpl
	adminTok  *accounts.TokenServiceImpl

	srv *fiber.App
}

// New builds the application. ctx bounds the lifetime of realtime
// connections.
func New(ctx context.Context, cfg *config.Config, logger *accounts.ZapLogger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}
	if logger == nil {
		logger = accounts.NewZapLogger(nil)
	}

	app := &App{
		config:  cfg,
		logger:  logger,
		started: time.Now(),
	}

	steps := []func(context.Context, *App) error{
		WithPersistence,
		WithServices,
		WithRealtime,
		WithHTTPServer,
	}
	for _, step := range steps {
		if err := step(ctx, app); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

func (a *App) Config() *config.Config { return a.config }

func (a *App) Fiber() *fiber.App { return a.srv }

func (a *App) DB() *bun.DB { return a.db }

func (a *App) Registry() *realtime.Registry { return a.registry }

func (a *App) Repository() accounts.RepositoryManager { return a.repo }

// Tokens returns the user and admin token services.
func (a *App) Tokens() (user, admin *accounts.TokenServiceImpl) {
	return a.userToken, a.adminTok
}

func (a *App) GetLogger(name string) *accounts.ZapLogger {
	return a.logger.Named(name)
}

// WithPersistence opens the database, creates the schema and seeds the
// default admin. Sample accounts are added in development.
func WithPersistence(ctx context.Context, app *App) error {
	dbCfg := app.config.Database

	var hooks []bun.QueryHook
	if dbCfg.Debug {
		hooks = append(hooks, bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	db, err := persistence.Open(ctx, persistence.Options{
		Driver:       dbCfg.Driver,
		DSN:          dbCfg.DSN,
		MaxOpenConns: dbCfg.MaxOpenConns,
		PingTimeout:  dbCfg.PingTimeout,
		QueryHooks:   hooks,
	})
	if err != nil {
		return err
	}
	app.db = db

	if err := accounts.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	app.repo = accounts.NewRepositoryManager(db)
	if err := app.repo.Validate(); err != nil {
		return err
	}

	return accounts.Seed(ctx, app.repo.Users(), accounts.SeedOptions{
		AdminEmail:    app.config.Admin.Email,
		AdminPassword: app.config.Admin.Password,
		AdminName:     app.config.Admin.Name,
		SampleUsers:   app.config.IsDevelopment(),
		BcryptCost:    app.config.Security.BcryptCost,
	}, app.GetLogger("seed"))
}

// WithServices builds the token services, authenticators and the account
// and moderation services. The moderation notifier is attached by
// WithRealtime.
func WithServices(_ context.Context, app *App) error {
	app.activity = activitymap.NewLogSink(app.logger.Zap().Named("activity"))

	app.userToken, app.adminTok = accounts.NewTokenServices(app.config, app.GetLogger("tokens"))

	provider := accounts.NewUserProvider(app.repo.Users()).WithLogger(app.GetLogger("provider"))
	app.auther = accounts.NewAuthenticator(provider, app.userToken, app.adminTok).
		WithLogger(app.GetLogger("auth")).
		WithActivitySink(app.activity)

	app.guards = accounts.NewHTTPAuthenticator(app.repo.Users(), app.userToken, app.adminTok).
		WithLogger(app.GetLogger("guard"))

	app.accounts = accounts.NewAccountService(app.repo, app.auther,
		accounts.WithAccountLogger(app.GetLogger("accounts")),
		accounts.WithAccountActivitySink(app.activity),
		accounts.WithBcryptCost(app.config.Security.BcryptCost),
	)
	return nil
}

// WithRealtime builds the registry, the broadcaster and the gateway, and
// hands the bridge to the moderation service.
func WithRealtime(_ context.Context, app *App) error {
	rcfg := app.config.Realtime
	logger := app.GetLogger("realtime")

	app.metrics = prometheus.NewRegistry()
	app.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := realtime.NewMetrics(app.metrics)

	app.registry = realtime.NewRegistry()
	rooms := realtime.NewRooms()

	broadcaster := realtime.NewBroadcaster(rooms, app.registry,
		realtime.WithBroadcasterLogger(logger),
		realtime.WithBroadcasterMetrics(metrics),
	)
	app.bridge = realtime.NewBridge(broadcaster, realtime.WithBridgeLogger(logger))
	app.verifier = accounts.NewCredentialVerifier(app.userToken, app.adminTok)

	app.gateway = realtime.NewGateway(app.verifier, app.registry, rooms,
		realtime.WithGatewayLogger(logger),
		realtime.WithGatewayMetrics(metrics),
		realtime.WithGatewayPublisher(broadcaster),
		realtime.WithSendBuffer(rcfg.SendBuffer),
		realtime.WithKeepalive(rcfg.PongWait, rcfg.PingInterval),
	)

	app.admin = accounts.NewModerationService(app.repo,
		accounts.WithModerationNotifier(app.bridge),
		accounts.WithModerationPresence(app.registry),
		accounts.WithModerationLogger(app.GetLogger("moderation")),
		accounts.WithModerationActivitySink(app.activity),
	)
	return nil
}

// WithHTTPServer creates the fiber app, its middleware and routes.
func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.config
	logger := app.GetLogger("http")

	srv := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ErrorHandler:          accounts.ErrorHandler(logger),
		ReadTimeout:           cfg.Server.ReadTimeout,
		DisableStartupMessage: !cfg.IsDevelopment(),
	})

	srv.Use(recover.New(recover.Config{EnableStackTrace: cfg.IsDevelopment()}))
	srv.Use(requestid.New(requestid.Config{ContextKey: accounts.RequestIDLocal}))
	srv.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:" + accounts.RequestIDLocal + "} ${status} ${method} ${path} ${latency}\n",
		Next: func(*fiber.Ctx) bool {
			return cfg.App.Env == config.EnvTest
		},
	}))
	srv.Use(helmet.New())
	srv.Use(cors.New(corsConfig(cfg.Server.FrontendURL)))

	srv.Get("/health", app.health)
	srv.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(app.metrics, promhttp.HandlerOpts{})))
	srv.Get("/ws", app.gateway.Upgrade(), app.gateway.Handler(ctx))

	api := srv.Group("/api", limiter.New(limiter.Config{
		Max:        cfg.RateLimit.Max,
		Expiration: cfg.RateLimit.Window,
		LimitReached: func(c *fiber.Ctx) error {
			return accounts.ErrTooManyRequests
		},
	}))

	gate := statusgate.New(statusgate.Config{
		Verifier:   app.verifier,
		Store:      app.repo.Users(),
		IsNotFound: accounts.IsNotFound,
		Logger:     app.GetLogger("statusgate"),
	})

	accounts.NewAuthController(app.accounts, app.guards, app.GetLogger("auth.http")).
		Mount(api.Group("/auth"), gate)
	accounts.NewAdminController(app.auther, app.admin, app.guards, app.GetLogger("admin.http")).
		Mount(api.Group("/admin"), gate)

	srv.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Route not found")
	})

	app.srv = srv
	return nil
}

func corsConfig(frontendURL string) cors.Config {
	origin := strings.TrimSpace(frontendURL)
	c := cors.Config{
		AllowOrigins: origin,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}
	if origin != "" && origin != "*" {
		c.AllowCredentials = true
	} else {
		c.AllowOrigins = "*"
	}
	return c
}

func (a *App) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Server is running",
		"timestamp":   time.Now().UTC(),
		"uptime":      time.Since(a.started).Seconds(),
		"environment": a.config.App.Env,
	})
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", "addr", ln.Addr().String(), "environment", a.config.App.Env)
		return a.srv.Listener(ln)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("server shutting down")
		a.registry.Close()
		return a.srv.ShutdownWithTimeout(a.config.Server.ShutdownTimeout)
	})

	err := g.Wait()
	a.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Run listens on the configured address.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Addr())
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Close releases the database. It is safe to call more than once.
func (a *App) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", "error", err)
	}
	a.db = nil
}
