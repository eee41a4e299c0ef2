package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/dbx"
	"github.com/engineerhub/engineerhub/internal/server/models"
)

// PostgresRepository implements note storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const noteColumns = `id, title, file_name, storage_key, file_type, file_size, course_code, course_name, year,
	instructor_name, description, uploader_id, likes_count, dislikes_count, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.Note, error) {
	var n models.Note
	err := s.Scan(&n.ID, &n.Title, &n.FileName, &n.StorageKey, &n.FileType, &n.FileSize,
		&n.CourseCode, &n.CourseName, &n.Year, &n.InstructorName, &n.Description,
		&n.UploaderID, &n.LikesCount, &n.DislikesCount, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Create inserts a note with zeroed counters and fills ID and timestamps.
// A storage key that is already tracked yields ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, note *models.Note) (*models.Note, error) {
	query := `
		INSERT INTO notes (title, file_name, storage_key, file_type, file_size, course_code, course_name,
			year, instructor_name, description, uploader_id, likes_count, dislikes_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, 0)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		note.Title, note.FileName, note.StorageKey, string(note.FileType), note.FileSize,
		note.CourseCode, note.CourseName, note.Year, note.InstructorName, note.Description, note.UploaderID,
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.NewError(common.ErrConflict, "storage key %q is already attached to a note", note.StorageKey)
		}
		if dbx.IsCheckViolation(err) {
			return nil, common.NewError(common.ErrInvalidArgument, "note rejected by constraint: %v", err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	note.LikesCount, note.DislikesCount = 0, 0
	return note, nil
}

// GetByID returns the note or ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Note, error) {
	return r.getOne(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id)
}

// GetByIDForUpdate is GetByID with a row lock (SELECT ... FOR UPDATE).
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Note, error) {
	return r.getOne(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, id int64) (*models.Note, error) {
	n, err := scanNote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Update applies the non-nil fields of upd and bumps updated_at.
func (r *PostgresRepository) Update(ctx context.Context, id int64, upd models.NoteUpdate) (*models.Note, error) {
	query := `
		UPDATE notes SET
			title = COALESCE($2, title),
			course_code = COALESCE($3, course_code),
			course_name = COALESCE($4, course_name),
			year = COALESCE($5, year),
			instructor_name = COALESCE($6, instructor_name),
			description = COALESCE($7, description),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + noteColumns

	n, err := scanNote(r.db.QueryRowContext(ctx, query, id,
		upd.Title, upd.CourseCode, upd.CourseName, upd.Year, upd.InstructorName, upd.Description))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Delete removes the note; its reactions go with it (ON DELETE CASCADE).
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
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

// List returns notes newest first. CourseCode and Search are
// case-insensitive substring matches; Search looks at title, description
// and instructor name.
func (r *PostgresRepository) List(ctx context.Context, filter models.NoteFilter) ([]*models.Note, error) {
	var (
		where []string
		args  []any
	)
	if filter.CourseCode != "" {
		args = append(args, "%"+escapeLike(filter.CourseCode)+"%")
		where = append(where, fmt.Sprintf("course_code ILIKE $%d", len(args)))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		where = append(where, fmt.Sprintf("year = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR instructor_name ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + noteColumns + ` FROM notes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	defer rows.Close()

	result := []*models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListStorageKeys returns every storage key referenced by a note.
func (r *PostgresRepository) ListStorageKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT storage_key FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("failed to select storage keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *PostgresRepository) ExistsByStorageKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM notes WHERE storage_key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) AdjustCounters(ctx context.Context, id int64, likesDelta, dislikesDelta int64) (int64, int64, error) {
	query := `
		UPDATE notes SET
			likes_count = GREATEST(likes_count + $2, 0),
			dislikes_count = GREATEST(dislikes_count + $3, 0)
		WHERE id = $1
		RETURNING likes_count, dislikes_count
	`
	var likes, dislikes int64
	err := r.db.QueryRowContext(ctx, query, id, likesDelta, dislikesDelta).Scan(&likes, &dislikes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, common.ErrNotFound
		}
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return likes, dislikes, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralises LIKE metacharacters in user input.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
