package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/businessgohq/bridge/internal/admin"
	"github.com/businessgohq/bridge/internal/audit"
	"github.com/businessgohq/bridge/internal/automation"
	"github.com/businessgohq/bridge/internal/config"
	"github.com/businessgohq/bridge/internal/conversation"
	"github.com/businessgohq/bridge/internal/db"
	"github.com/businessgohq/bridge/internal/handlers"
	"github.com/businessgohq/bridge/internal/healthcheck"
	"github.com/businessgohq/bridge/internal/identity"
	"github.com/businessgohq/bridge/internal/inbound"
	"github.com/businessgohq/bridge/internal/logger"
	"github.com/businessgohq/bridge/internal/obs"
	"github.com/businessgohq/bridge/internal/server"
	"github.com/businessgohq/bridge/internal/session"
	"github.com/businessgohq/bridge/internal/token"
	"github.com/businessgohq/bridge/internal/version"
	"github.com/businessgohq/bridge/internal/whatsapp"
)

func runServe() {
	obs.Init()
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBPool,
			provideAdminService,
			provideDirectory,
			provideResolver,
			provideSessionStore,
			provideSessionEngine,
			provideTokenStore,
			provideTokenIssuer,
			provideAuditSink,
			provideBridge,
			provideSender,
			provideAutomation,
			provideProcessor,
			provideDispatcher,
			provideHealthCheckers,
			provideServerHandler(providePingHandler),
			provideServerHandler(handlers.NewMetricsHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(provideAdminHandler),
			provideServerHandler(provideBusinessHandler),
			provideServer,
		),
		fx.Invoke(
			startSweeps,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBPool(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.Postgres.Migrate {
		if err := db.Migrate(cfg.Postgres.URL()); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		log.Info("database migrations applied")
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideAdminService(log *slog.Logger, pool *pgxpool.Pool) *admin.Service {
	return admin.NewService(log, pool)
}

func provideDirectory(pool *pgxpool.Pool) *identity.PGDirectory {
	return identity.NewPGDirectory(pool)
}

func provideResolver(log *slog.Logger, cfg config.Config, directory *identity.PGDirectory) *identity.Resolver {
	return identity.NewResolver(log, directory, cfg.WhatsApp.DefaultCountryCode)
}

func provideSessionStore(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool) session.Store {
	if cfg.Challenge.Store == config.StoreMemory {
		log.Warn("auth sessions kept in memory; restarts log every operator out")
		return session.NewMemoryStore()
	}
	return session.NewPGStore(pool)
}

func provideSessionEngine(log *slog.Logger, cfg config.Config, store session.Store) *session.Engine {
	return session.NewEngine(log, store, session.Config{
		CodeLength:  cfg.Challenge.CodeLength,
		CodeTTL:     time.Duration(cfg.Challenge.CodeTTLMinutes) * time.Minute,
		SessionTTL:  time.Duration(cfg.Challenge.SessionTTLMinutes) * time.Minute,
		MaxAttempts: cfg.Challenge.MaxAttempts,
	})
}

func provideTokenStore(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool) token.Store {
	if cfg.Token.Store == config.StoreMemory {
		log.Warn("business tokens kept in memory; restarts revoke them all")
		return token.NewMemoryStore()
	}
	return token.NewPGStore(pool)
}

func provideTokenIssuer(log *slog.Logger, cfg config.Config, store token.Store) *token.Issuer {
	return token.NewIssuer(log, store, time.Duration(cfg.Token.TTLMinutes)*time.Minute)
}

func provideAuditSink(log *slog.Logger, pool *pgxpool.Pool) audit.Sink {
	return audit.NewPGSink(log, pool)
}

func provideBridge(log *slog.Logger, pool *pgxpool.Pool, sink audit.Sink) *conversation.Bridge {
	return conversation.NewBridge(log, conversation.NewPGStore(pool), sink)
}

func provideSender(log *slog.Logger, cfg config.Config) *whatsapp.Sender {
	return whatsapp.NewSender(log, cfg.WhatsApp)
}

func provideAutomation(log *slog.Logger, cfg config.Config) automation.Engine {
	return automation.NewEngine(log, cfg.Automation)
}

func provideProcessor(log *slog.Logger, resolver *identity.Resolver, sessions *session.Engine, tokens *token.Issuer, bridge *conversation.Bridge, sender *whatsapp.Sender, engine automation.Engine) *inbound.Processor {
	return inbound.NewProcessor(log, resolver, sessions, tokens, bridge, sender, engine)
}

func provideDispatcher(lc fx.Lifecycle, log *slog.Logger, processor *inbound.Processor) *inbound.Dispatcher {
	d := inbound.NewDispatcher(log, processor, 0)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return d.Close(ctx) }})
	return d
}

func provideHealthCheckers(pool *pgxpool.Pool, dispatcher *inbound.Dispatcher) []healthcheck.Checker {
	return []healthcheck.Checker{
		healthcheck.NewPostgresChecker(pool),
		healthcheck.NewIntakeChecker(dispatcher.Pending, 0),
	}
}

func providePingHandler(log *slog.Logger, checkers []healthcheck.Checker) *handlers.PingHandler {
	return handlers.NewPingHandler(log, checkers...)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, dispatcher *inbound.Dispatcher) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, cfg.WhatsApp, dispatcher)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config, admins *admin.Service) (*handlers.AuthHandler, error) {
	expires, err := time.ParseDuration(cfg.Admin.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse admin.jwt_expires_in: %w", err)
	}
	return handlers.NewAuthHandler(log, admins, cfg.Admin.JWTSecret, expires, float64(cfg.Admin.LoginRatePerSec), cfg.Admin.LoginBurst), nil
}

func provideAdminHandler(log *slog.Logger, cfg config.Config, engine *session.Engine, bridge *conversation.Bridge, sender *whatsapp.Sender) *handlers.AdminHandler {
	return handlers.NewAdminHandler(log, engine, bridge, sender, cfg.WhatsApp)
}

func provideBusinessHandler(log *slog.Logger, issuer *token.Issuer, directory *identity.PGDirectory, bridge *conversation.Bridge) *handlers.BusinessHandler {
	return handlers.NewBusinessHandler(log, issuer, directory, bridge)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.Config.Admin.JWTSecret, params.ServerHandlers)
}

func startSweeps(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, engine *session.Engine, issuer *token.Issuer) error {
	c := cron.New()
	sweepLog := log.With(slog.String("component", "sweeper"))

	if _, err := c.AddFunc(cfg.Challenge.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := engine.Sweep(ctx); err != nil {
			sweepLog.Error("session sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("challenge sweep spec: %w", err)
	}

	if _, err := c.AddFunc(cfg.Token.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := issuer.Sweep(ctx); err != nil {
			sweepLog.Error("token sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("token sweep spec: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { c.Start(); return nil },
		OnStop:  func(context.Context) error { <-c.Stop().Done(); return nil },
	})
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config, admins *admin.Service) {
	fmt.Printf("Starting bridge %s\n", version.GetInfo())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := admins.EnsureBootstrap(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
