// Package app wires configuration, storage, services and the Telegram
// runtime into a runnable application.
package app

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/otpbot/internal/bot"
	"github.com/m3rciful/otpbot/internal/config"
	"github.com/m3rciful/otpbot/internal/conversation"
	"github.com/m3rciful/otpbot/internal/logger"
	"github.com/m3rciful/otpbot/internal/storage"
	"github.com/m3rciful/otpbot/internal/storage/postgres"
	"github.com/m3rciful/otpbot/internal/storage/sqlite"
	tg "github.com/m3rciful/otpbot/internal/telegram"
	"github.com/m3rciful/otpbot/internal/telegram/router"
	"github.com/m3rciful/otpbot/internal/vault"
)

const defaultConversationTTL = 15 * time.Minute

// App owns the long-lived components of the bot process.
type App struct {
	cfg   *config.Config
	store storage.Store
	conv  *conversation.Registry
	bot   *bot.Bot
	reg   *tg.Registry
}

// New opens the configured store backend and wires the service graph.
// The backend choice happens exactly once, here; everything downstream
// talks to the storage.Store interface.
func New(cfg *config.Config) (*App, error) {
	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	ttl := defaultConversationTTL
	if cfg.Conversation.TTLMinutes > 0 {
		ttl = time.Duration(cfg.Conversation.TTLMinutes) * time.Minute
	}
	conv := conversation.NewRegistry(ttl)

	b := bot.New(vault.New(store), conv)
	reg := tg.NewRegistry()
	b.Register(reg)

	return &App{
		cfg:   cfg,
		store: store,
		conv:  conv,
		bot:   b,
		reg:   reg,
	}, nil
}

func openStore(cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqlite.Open(sqlite.Config{Path: cfg.SQLite.Path})
	case config.BackendPostgres:
		return postgres.Open(postgres.Config{
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			Name:           cfg.Postgres.Name,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConnections: cfg.Postgres.MaxConnections,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Run starts the Telegram runtime and blocks until ctx is cancelled or
// the bot stops on its own.
func (a *App) Run(ctx context.Context) error {
	routes := router.CommandRoutes(a.reg)
	routes = append(routes, router.TextRoutes(a.bot, a.reg)...)
	routes = append(routes, router.CallbackRoute(a.bot.DispatchCallback))

	startedAt := time.Now()

	return tg.Run(ctx, tg.RunOptions{
		Config:      a.cfg,
		Registry:    a.reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart: func(runCtx context.Context, api *tele.Bot) error {
			a.bot.SetFiles(api)
			go a.conv.Run(runCtx, time.Minute)
			logger.L.With("component", "app").Info("app ready",
				slog.String("event", "ready"),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			logger.L.With("component", "app").Info("shutting down...",
				slog.String("event", "shutdown"),
			)
			return a.Close()
		},
	})
}

// Close releases the store. Safe to call after Run returns.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
