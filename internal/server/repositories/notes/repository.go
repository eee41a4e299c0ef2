package notes

import (
	"context"

	"github.com/engineerhub/engineerhub/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, note *models.Note) (*models.Note, error)
	GetByID(ctx context.Context, id int64) (*models.Note, error)
	// GetByIDForUpdate reads the note and locks its row until the surrounding
	// transaction ends. Only meaningful on a repository bound to a *sql.Tx.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Note, error)
	Update(ctx context.Context, id int64, upd models.NoteUpdate) (*models.Note, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.NoteFilter) ([]*models.Note, error)
	ListStorageKeys(ctx context.Context) ([]string, error)
	ExistsByStorageKey(ctx context.Context, key string) (bool, error)
	// AdjustCounters adds the deltas to the note's counters, flooring each at
	// zero, and returns the new values.
	AdjustCounters(ctx context.Context, id int64, likesDelta, dislikesDelta int64) (likes, dislikes int64, err error)
}
