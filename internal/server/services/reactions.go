package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/dbx"
	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/engineerhub/engineerhub/internal/server/repositories/repomanager"
)

// ReactionService keeps a note's like and dislike counters equal to the
// number of reactions of each polarity.
type ReactionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewReactionService(db *sql.DB, rm repomanager.RepositoryManager, log logging.Logger) *ReactionService {
	return &ReactionService{db: db, repomanager: rm, log: log.With("service", "reactions")}
}

// transition is the effect of one submitted polarity on a (note, user) pair.
type transition struct {
	action        models.ReactionAction
	likesDelta    int64
	dislikesDelta int64
}

func counterDelta(p models.Polarity) (likes, dislikes int64) {
	if p == models.Like {
		return 1, 0
	}
	return 0, 1
}

// nextReaction computes the transition for submitted given the current
// reaction (nil when the user has not reacted). Submitting the current
// polarity again removes it; the opposite polarity switches it.
func nextReaction(current *models.Polarity, submitted models.Polarity) transition {
	l, d := counterDelta(submitted)
	switch {
	case current == nil:
		return transition{action: models.ReactionAdded, likesDelta: l, dislikesDelta: d}
	case *current == submitted:
		return transition{action: models.ReactionRemoved, likesDelta: -l, dislikesDelta: -d}
	default:
		ol, od := counterDelta(*current)
		return transition{action: models.ReactionUpdated, likesDelta: l - ol, dislikesDelta: d - od}
	}
}

// React applies polarity p from userID to the note. The note row is locked
// for the duration of the transaction so reactions on one note serialise.
func (s *ReactionService) React(ctx context.Context, noteID, userID int64, p models.Polarity) (*models.ReactionResult, error) {
	if !p.Valid() {
		return nil, common.NewError(common.ErrInvalidArgument, "polarity must be 1 or -1, got %d", p)
	}

	var result *models.ReactionResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		notes := s.repomanager.Notes(tx)
		reactions := s.repomanager.Reactions(tx)

		if _, err := notes.GetByIDForUpdate(ctx, noteID); err != nil {
			return err
		}

		existing, err := reactions.Find(ctx, noteID, userID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		var current *models.Polarity
		if existing != nil {
			current = &existing.Polarity
		}

		t := nextReaction(current, p)
		switch t.action {
		case models.ReactionAdded:
			_, err = reactions.Create(ctx, noteID, userID, p)
		case models.ReactionRemoved:
			err = reactions.Delete(ctx, existing.ID)
		case models.ReactionUpdated:
			err = reactions.UpdatePolarity(ctx, existing.ID, p)
		}
		if err != nil {
			return err
		}

		likes, dislikes, err := notes.AdjustCounters(ctx, noteID, t.likesDelta, t.dislikesDelta)
		if err != nil {
			return err
		}
		result = &models.ReactionResult{Action: t.action, Likes: likes, Dislikes: dislikes}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "reaction applied", "note_id", noteID, "user_id", userID, "action", result.Action)
	return result, nil
}
