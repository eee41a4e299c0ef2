package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/engineerhub/engineerhub/internal/server/repositories/notes"
	"github.com/engineerhub/engineerhub/internal/server/repositories/reactions"
	"github.com/engineerhub/engineerhub/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFactories_ReturnPostgresRepos(t *testing.T) {
	db := newDB(t)
	var m RepositoryManager = NewPostgresRepositoryManager()

	assert.IsType(t, &users.PostgresRepository{}, m.Users(db))
	assert.IsType(t, &notes.PostgresRepository{}, m.Notes(db))
	assert.IsType(t, &reactions.PostgresRepository{}, m.Reactions(db))
}

func TestRunMigrations(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, _ *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	assert.EqualError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), db), "boom")
}

func TestMigrationVersion(t *testing.T) {
	db := newDB(t)

	orig := gooseVersion
	t.Cleanup(func() { gooseVersion = orig })
	gooseVersion = func(context.Context, *sql.DB) (int64, error) { return 2, nil }

	v, err := NewPostgresRepositoryManager().MigrationVersion(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}
