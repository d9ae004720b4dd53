package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emilythestrangee/post-voting/backend/internal/config"
	"github.com/emilythestrangee/post-voting/backend/internal/database"
	"github.com/emilythestrangee/post-voting/backend/internal/handlers"
	"github.com/emilythestrangee/post-voting/backend/internal/logging"
	"github.com/emilythestrangee/post-voting/backend/internal/notify"
	"github.com/emilythestrangee/post-voting/backend/internal/server"
	"github.com/emilythestrangee/post-voting/backend/internal/votes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.IsProd())
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database, cfg.LogLevel, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	store := database.NewVoteStore(db.GetDB(), logger)
	hub := notify.NewHub(cfg.Notify.Buffer)

	// With the postgres backend every instance publishes through NOTIFY and
	// its relay feeds the local hub, so a vote reaches clients on all
	// instances. The local backend publishes straight to the hub.
	var publisher notify.Publisher = hub
	var relay *notify.PGRelay
	if cfg.Notify.Backend == config.NotifyPostgres {
		publisher = notify.NewPGPublisher(db.GetDB(), cfg.Notify.Channel)
		relay = notify.NewPGRelay(cfg.Database.DSN(), cfg.Notify.Channel, hub, logger)
	}
	dispatcher := notify.NewDispatcher(cfg.Notify.Buffer, logger, publisher)

	manager := votes.NewManager(store, cfg.Voting,
		votes.WithNotifier(dispatcher),
		votes.WithLogger(logger),
	)

	srv := server.NewServer(cfg, db, handlers.Deps{
		DB:          db.GetDB(),
		Votes:       manager,
		Directory:   store,
		Hub:         hub,
		Voting:      cfg.Voting,
		JWTSecret:   []byte(cfg.JWTSecret),
		VotersLimit: cfg.VotersLimit,
		Logger:      logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	// Request contexts derive from gctx so open event streams end on shutdown.
	srv.BaseContext = func(net.Listener) context.Context { return gctx }

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Info("server listening",
			"event", "server_started",
			"module", "api",
			"layer", "main",
			"addr", srv.Addr,
			"notify_backend", cfg.Notify.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down",
			"event", "server_stopping",
			"module", "api",
			"layer", "main",
		)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return srv.Close()
		}
		return nil
	})

	return g.Wait()
}
