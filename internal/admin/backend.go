// Package admin implements the engineerhub-admin command line: schema
// migrations, account provisioning and orphan blob reconciliation run
// directly against the database and the blob store.
package admin

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/engineerhub/engineerhub/internal/server/blobstore"
	"github.com/engineerhub/engineerhub/internal/server/config"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/engineerhub/engineerhub/internal/server/repositories/repomanager"
	"github.com/engineerhub/engineerhub/internal/server/services"
)

// Backend is what the commands need from the server internals.
type Backend interface {
	Migrate(ctx context.Context) error
	MigrationVersion(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, reg models.Registration) (*models.User, error)
	Principal(ctx context.Context, userID int64) (models.Principal, error)
	ListOrphans(ctx context.Context) (*models.OrphanReport, error)
	RecoverOrphan(ctx context.Context, in models.RecoverInput, caller models.Principal) (*models.NoteView, error)
	Close() error
}

// Opener builds a Backend for one command invocation.
type Opener func(ctx context.Context) (Backend, error)

type serviceBackend struct {
	db      *sql.DB
	rm      repomanager.RepositoryManager
	users   *services.UserService
	orphans *services.OrphanService
}

// NewBackend opens the database and the blob store described by cfg.
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	log := logging.New(os.Stderr, cfg.LogLevel, "text")

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := blobstore.New(ctx, blobstore.OptionsFromConfig(cfg), log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	notes := services.NewNoteService(db, rm, store, cfg, log)

	return &serviceBackend{
		db:      db,
		rm:      rm,
		users:   services.NewUserService(db, rm, cfg, log),
		orphans: services.NewOrphanService(db, rm, store, notes, cfg, log),
	}, nil
}

func (b *serviceBackend) Migrate(ctx context.Context) error {
	return b.rm.RunMigrations(ctx, b.db)
}

func (b *serviceBackend) MigrationVersion(ctx context.Context) (int64, error) {
	return b.rm.MigrationVersion(ctx, b.db)
}

func (b *serviceBackend) CreateUser(ctx context.Context, reg models.Registration) (*models.User, error) {
	res, err := b.users.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

func (b *serviceBackend) Principal(ctx context.Context, userID int64) (models.Principal, error) {
	u, err := b.users.Me(ctx, userID)
	if err != nil {
		return models.Principal{}, err
	}
	return models.Principal{UserID: u.ID, Name: u.Name, Role: u.Role()}, nil
}

func (b *serviceBackend) ListOrphans(ctx context.Context) (*models.OrphanReport, error) {
	return b.orphans.ListOrphans(ctx)
}

func (b *serviceBackend) RecoverOrphan(ctx context.Context, in models.RecoverInput, caller models.Principal) (*models.NoteView, error) {
	return b.orphans.Recover(ctx, in, caller)
}

func (b *serviceBackend) Close() error {
	return b.db.Close()
}
