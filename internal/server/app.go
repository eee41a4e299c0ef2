// Package server wires the EngineerHub server together: database and
// migrations, the blob store, the services, the public HTTP API and the gRPC
// operations endpoint. It runs until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/engineerhub/engineerhub/internal/server/blobstore"
	"github.com/engineerhub/engineerhub/internal/server/config"
	"github.com/engineerhub/engineerhub/internal/server/httpapi"
	"github.com/engineerhub/engineerhub/internal/server/repositories/repomanager"
	"github.com/engineerhub/engineerhub/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/engineerhub/engineerhub/internal/server/grpc"
)

// healthProbeKey is looked up in the bucket to verify the blob store answers.
const healthProbeKey = ".healthz"

const healthInterval = 15 * time.Second

type blobStore interface {
	services.BlobStore
	Exists(ctx context.Context, key string) (bool, error)
}

// seams for tests
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newBlobStore = func(ctx context.Context, opts blobstore.Options, log logging.Logger) (blobStore, error) {
		return blobstore.New(ctx, opts, log)
	}
	newRepositoryManager = func() repomanager.RepositoryManager {
		return repomanager.NewPostgresRepositoryManager()
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	store  blobStore

	noteService     *services.NoteService
	reactionService *services.ReactionService
	orphanService   *services.OrphanService
	userService     *services.UserService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if c.AutoMigrate {
		logger.Info(ctx, "Applying migrations...")
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	store, err := newBlobStore(ctx, blobstore.OptionsFromConfig(c), logger.With("module", "blobstore"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	ns := services.NewNoteService(db, rm, store, c, logger)

	return &App{
		config:          c,
		logger:          logger,
		db:              db,
		store:           store,
		noteService:     ns,
		reactionService: services.NewReactionService(db, rm, logger),
		orphanService:   services.NewOrphanService(db, rm, store, ns, c, logger),
		userService:     services.NewUserService(db, rm, c, logger),
	}, nil
}

// Handler returns the HTTP API.
func (app *App) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Notes:          app.noteService,
		Reactions:      app.reactionService,
		Orphans:        app.orphanService,
		Users:          app.userService,
		Health:         app.db.PingContext,
		Log:            app.logger,
		AllowedOrigins: app.config.CORSAllowedOrigins,
	})
}

// probe checks the database and the blob store.
func (app *App) probe(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if _, err := app.store.Exists(ctx, healthProbeKey); err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	return nil
}

// Run serves HTTP and gRPC until ctx is cancelled, a termination signal
// arrives, or either server fails.
func (app *App) Run(ctx context.Context) error {

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.Handler(), app.logger)
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server failed", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.probe, healthInterval)
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, "grpc server failed", "error", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// Close releases the database pool.
func (app *App) Close() error {
	return app.db.Close()
}
