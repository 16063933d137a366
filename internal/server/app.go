// Package server wires the auth server together: it opens the store, cache
// and broker, waits for them to become ready, applies migrations and then
// serves HTTP and gRPC health until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/broker"
	"github.com/dmitrijs2005/authkeeper/internal/server/cache"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
	hs "github.com/dmitrijs2005/authkeeper/internal/server/http"
	"github.com/dmitrijs2005/authkeeper/internal/server/idgen"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/readiness"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       *cache.Storage
	publisher   *broker.Publisher
	probe       *readiness.Probe
	httpServer  *hs.Server
	health      *gs.HealthServer
}

// NewApp builds every component from c. Nothing is dialed here; connections
// are made lazily and verified by the readiness probe in Run.
func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel).With("env", c.Env)

	db, err := repomanager.OpenDB(c.DatabaseDSN(), c.DBMaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager(c.StoreTimeout)

	ids, err := idgen.New(c.NodeID)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("id generator init error: %w", err)
	}

	userCache := cache.New(cache.Options{
		Addr:     c.RedisAddr(),
		Password: c.RedisPassword,
		TTL:      c.CacheTTL,
		Timeout:  c.CacheTimeout,
	})

	publisher := broker.NewPublisher(broker.Config{
		URL:            c.RabbitMQURL(),
		Exchanges:      c.RabbitMQExchanges,
		ReconnectDelay: c.ReconnectDelay,
		PublishTimeout: c.BrokerTimeout,
	}, broker.DialAMQP, logger)

	m := metrics.New()

	users := services.NewUserService(services.Deps{
		DB:          db,
		RepoManager: rm,
		Cache:       userCache,
		Publisher:   publisher,
		Tokens:      auth.NewIssuer(c.JWTSecret, c.TokenTTL),
		IDs:         ids,
		Metrics:     m,
		Logger:      logger,
	})

	probe := readiness.New([]readiness.Check{
		{Name: "store", Fn: rm.Users(db).Ping},
		{Name: "cache", Fn: userCache.Ping},
		{Name: "broker", Fn: publisher.Probe},
	}, c.ReadyAttempts, c.ReadyInterval, logger)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: rm,
		cache:       userCache,
		publisher:   publisher,
		probe:       probe,
		httpServer:  hs.NewServer(c.HTTPAddr(), users, m, logger),
		health:      gs.NewHealthServer(c.GRPCHealthAddr, logger, publisher, m.SetBrokerConnected),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// startup gates the HTTP API: dependencies must answer and the schema must
// be current before the first request is accepted.
func (app *App) startup(ctx context.Context) error {
	if err := app.probe.WaitUntilReady(ctx); err != nil {
		return err
	}

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	app.publisher.Start(ctx)
	app.health.SetReady()
	return nil
}

// Run blocks until ctx is cancelled, a termination signal arrives, or a
// component fails. A readiness failure is returned wrapped in
// common.ErrNotReady.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)
	defer app.close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.health.Run(gctx)
	})

	g.Go(func() error {
		if err := app.startup(gctx); err != nil {
			return err
		}
		return app.httpServer.Run(gctx)
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}

func (app *App) close() {
	app.publisher.Close()
	if err := app.cache.Close(); err != nil {
		app.logger.Warn(context.Background(), "cache close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "db close error", "error", err)
	}
}
