package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/example/weekend-scheduler/internal/application"
	"github.com/example/weekend-scheduler/internal/config"
	"github.com/example/weekend-scheduler/internal/delivery"
	"github.com/example/weekend-scheduler/internal/delivery/discord"
	"github.com/example/weekend-scheduler/internal/delivery/queue"
	httptransport "github.com/example/weekend-scheduler/internal/http"
	"github.com/example/weekend-scheduler/internal/logging"
	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/persistence/badger"
	"github.com/example/weekend-scheduler/internal/persistence/sqlite"
	"github.com/example/weekend-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/weekend-scheduler/internal/reminder"
	"github.com/example/weekend-scheduler/internal/timezone"
)

const badgerGCInterval = 10 * time.Minute

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		bootLogger.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(logging.NewHandler(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	integ, err := newIntegrations(cfg, logger)
	if err != nil {
		return err
	}
	defer integ.close(logger)

	wired := newApp(store, cfg, integ, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           wired.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		}()
	}

	start("reminder scheduler", wired.scheduler.Run)
	if integ.worker != nil {
		start("delivery worker", integ.worker.Run)
	}
	start("http server", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("failed to shutdown server", "error", err)
			}
		}()
		logger.Info("scheduler API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	wg.Wait()
	wired.dispatcher.Close()
	if dropped, failed := wired.dispatcher.Dropped(), wired.dispatcher.Failed(); dropped > 0 || failed > 0 {
		logger.Warn("undelivered messages at shutdown", "dropped", dropped, "failed", failed)
	}
	return errors.Join(errs...)
}

// openStore opens the configured backend. SQLite is migrated before use.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite, "":
		storage, err := sqlite.OpenWithConfig(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("storage ready", "driver", config.DriverSQLite, "path", cfg.SQLiteDSN)
		return storage, nil
	case config.DriverBadger:
		store, err := badger.Open(cfg.BadgerDir, logger)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		store.StartGC(ctx, badgerGCInterval)
		logger.Info("storage ready", "driver", config.DriverBadger, "dir", cfg.BadgerDir)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// integrations holds the outbound side of the process: where rendered
// messages go and where tracked rosters come from.
type integrations struct {
	transport delivery.Transport
	roster    application.RosterResolver
	worker    *queue.Worker
	closers   []io.Closer
}

func newIntegrations(cfg config.Config, logger *slog.Logger) (*integrations, error) {
	integ := &integrations{}

	var sender delivery.Transport = delivery.LogTransport{Logger: logger}
	if cfg.DiscordToken != "" {
		session, err := discord.NewSession(cfg.DiscordToken)
		if err != nil {
			return nil, err
		}
		sender = discord.NewTransport(session)
		integ.roster = application.NewCachedRosterResolver(discord.NewRosterResolver(session), cfg.RosterCacheTTL, 0, nil)
		logger.Info("discord delivery enabled")
	}

	if cfg.RedisURL == "" {
		integ.transport = sender
		return integ, nil
	}

	opt, err := queue.ParseRedisURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := asynq.NewClient(opt)
	integ.closers = append(integ.closers, client)
	integ.transport = queue.NewOutbox(client, logger)
	integ.worker = queue.NewWorker(opt, cfg.DeliveryWorkers, queue.NewHandler(sender, logger), logger)
	logger.Info("queued delivery enabled")
	return integ, nil
}

func (i *integrations) close(logger *slog.Logger) {
	for _, c := range i.closers {
		if err := c.Close(); err != nil {
			logger.Error("failed to close integration", "error", err)
		}
	}
}

type app struct {
	dispatcher *delivery.Dispatcher
	scheduler  *reminder.Scheduler
	handler    http.Handler
}

// newApp wires the services, the reminder scheduler and the HTTP API over
// one store. Close the dispatcher when done.
func newApp(store persistence.Store, cfg config.Config, integ *integrations, logger *slog.Logger) *app {
	dispatcher := delivery.NewDispatcher(integ.transport, delivery.DispatcherOptions{
		Workers: cfg.DeliveryWorkers,
		Buffer:  cfg.DeliveryBuffer,
		Logger:  logger,
	})

	zones := timezone.NewResolver()
	defaults := application.DefaultGuildDefaults(cfg.DefaultTimezone)
	collab := application.Collaborators{
		Notifier: dispatcher,
		Locks:    application.NewPollLocks(),
		Zones:    zones,
		Defaults: defaults,
	}
	if integ.roster != nil {
		collab.Roster = integ.roster
	}

	now := time.Now
	polls := application.NewPollServiceWithLogger(store, collab, uuid.NewString, now, logger)
	responses := application.NewResponseServiceWithLogger(store, collab, now, logger)
	configs := application.NewConfigServiceWithLogger(store, zones, defaults, now, logger)
	scheduler := reminder.NewScheduler(store, polls, dispatcher, reminder.Options{
		Interval: cfg.TickInterval,
		Locks:    collab.Locks,
		Zones:    zones,
		Now:      now,
		Logger:   logger,
	})

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Guilds:    httptransport.NewGuildHandler(configs, polls, logger),
		Polls:     httptransport.NewPollHandler(polls, scheduler, logger),
		Responses: httptransport.NewResponseHandler(responses, logger),
		Health:    httptransport.NewHealthHandler(store, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})

	return &app{dispatcher: dispatcher, scheduler: scheduler, handler: handler}
}
