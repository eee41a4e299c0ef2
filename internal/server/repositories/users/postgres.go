package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/dbx"
	"github.com/engineerhub/engineerhub/internal/server/models"
)

// PostgresRepository implements user storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectUser = `SELECT id, name, email, password_hash, role, major, uni_id, department, phone_num, office_num, license, created_at FROM users`

// Create inserts the user and fills its ID and CreatedAt. Any unique
// constraint hit (name, email, uni_id, phone, office) maps to ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role, major, uni_id, department, phone_num, office_num, license)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	c := models.Flatten(user.Profile)
	err := r.db.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, string(user.Role()),
		c.Major, c.UniID, c.Department, c.PhoneNum, c.OfficeNum, c.License,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.NewError(common.ErrConflict, "name, email or contact details already registered")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByName returns the user with the given login name or ErrNotFound.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	return r.getOne(ctx, selectUser+` WHERE name = $1`, name)
}

// GetByID returns the user with the given id or ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		u    models.User
		role string
		c    models.ProfileColumns
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role,
		&c.Major, &c.UniID, &c.Department, &c.PhoneNum, &c.OfficeNum, &c.License, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	parsed, err := models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	if u.Profile, err = models.BuildProfile(parsed, c); err != nil {
		return nil, err
	}
	return &u, nil
}
