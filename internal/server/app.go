// Package server initializes and runs the main application server.
// It wires storage, the credential authority, the challenge registry sweeper,
// and the HTTP endpoint, and handles graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dvoronkov/lockbox/internal/logging"
	"github.com/dvoronkov/lockbox/internal/server/blob"
	"github.com/dvoronkov/lockbox/internal/server/challenges"
	"github.com/dvoronkov/lockbox/internal/server/config"
	"github.com/dvoronkov/lockbox/internal/server/httpapi"
	"github.com/dvoronkov/lockbox/internal/server/metrics"
	"github.com/dvoronkov/lockbox/internal/server/repositories/repomanager"
	"github.com/dvoronkov/lockbox/internal/server/session"
	"github.com/dvoronkov/lockbox/internal/server/vault"
	"github.com/dvoronkov/lockbox/internal/server/webauthn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	challenges *challenges.Registry
	httpServer *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("repository init error: %w", err)
	}
	if err := repos.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	challengeRegistry := challenges.NewRegistry(cfg.ChallengeTTL)

	authority, err := webauthn.NewService(webauthn.Params{
		DB:         db,
		Repos:      repos,
		Challenges: challengeRegistry,
		Metrics:    m,
		Logger:     logger,
		RPID:       cfg.RPID,
		RPName:     cfg.RPName,
		RPOrigins:  cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("credential authority init error: %w", err)
	}

	httpServer := httpapi.NewServer(httpapi.Params{
		Address:   cfg.EndpointAddrHTTP,
		Logger:    logger,
		Authority: authority,
		Sessions:  session.NewIssuer([]byte(cfg.SecretKey), cfg.SessionValidityDuration),
		Vault:     vault.NewService(db, repos, logger),
		Blobs: blob.NewService(blob.Settings{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
		}),
		Registry:       registry,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		challenges: challengeRegistry,
		httpServer: httpServer,
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

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.challenges.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing database", "error", err)
	}
}
