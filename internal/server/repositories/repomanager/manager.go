package repomanager

import (
	"context"
	"database/sql"

	"github.com/engineerhub/engineerhub/internal/dbx"
	"github.com/engineerhub/engineerhub/internal/server/repositories/notes"
	"github.com/engineerhub/engineerhub/internal/server/repositories/reactions"
	"github.com/engineerhub/engineerhub/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so that services can
// use the same constructors inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	MigrationVersion(ctx context.Context, db *sql.DB) (int64, error)
	Users(db dbx.DBTX) users.Repository
	Notes(db dbx.DBTX) notes.Repository
	Reactions(db dbx.DBTX) reactions.Repository
}
