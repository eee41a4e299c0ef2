package reactions

import (
	"context"

	"github.com/engineerhub/engineerhub/internal/server/models"
)

type Repository interface {
	// Find returns the caller's reaction on a note or ErrNotFound.
	Find(ctx context.Context, noteID, userID int64) (*models.Reaction, error)
	Create(ctx context.Context, noteID, userID int64, p models.Polarity) (*models.Reaction, error)
	UpdatePolarity(ctx context.Context, id int64, p models.Polarity) error
	Delete(ctx context.Context, id int64) error
	// ForUser maps note IDs to the user's polarity on them.
	ForUser(ctx context.Context, userID int64) (map[int64]models.Polarity, error)
}
