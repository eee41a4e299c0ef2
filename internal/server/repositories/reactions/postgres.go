package reactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/dbx"
	"github.com/engineerhub/engineerhub/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Find(ctx context.Context, noteID, userID int64) (*models.Reaction, error) {
	query := `SELECT id, note_id, user_id, polarity, created_at FROM note_reactions WHERE note_id = $1 AND user_id = $2`

	var rc models.Reaction
	err := r.db.QueryRowContext(ctx, query, noteID, userID).
		Scan(&rc.ID, &rc.NoteID, &rc.UserID, &rc.Polarity, &rc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rc, nil
}

func (r *PostgresRepository) Create(ctx context.Context, noteID, userID int64, p models.Polarity) (*models.Reaction, error) {
	query := `
		INSERT INTO note_reactions (note_id, user_id, polarity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	rc := models.Reaction{NoteID: noteID, UserID: userID, Polarity: p}
	err := r.db.QueryRowContext(ctx, query, noteID, userID, int(p)).Scan(&rc.ID, &rc.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.NewError(common.ErrConflict, "user %d already reacted to note %d", userID, noteID)
		}
		if dbx.IsCheckViolation(err) {
			return nil, common.NewError(common.ErrInvalidArgument, "polarity must be 1 or -1, got %d", p)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rc, nil
}

func (r *PostgresRepository) UpdatePolarity(ctx context.Context, id int64, p models.Polarity) error {
	return r.execOne(ctx, `UPDATE note_reactions SET polarity = $2 WHERE id = $1`, id, int(p))
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM note_reactions WHERE id = $1`, id)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsCheckViolation(err) {
			return common.NewError(common.ErrInvalidArgument, "rejected by constraint: %v", err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ForUser(ctx context.Context, userID int64) (map[int64]models.Polarity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT note_id, polarity FROM note_reactions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select reactions: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]models.Polarity)
	for rows.Next() {
		var (
			noteID int64
			p      models.Polarity
		)
		if err := rows.Scan(&noteID, &p); err != nil {
			return nil, err
		}
		result[noteID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
