package models

import "time"

// Polarity is the sign of a reaction.
type Polarity int

const (
	Like    Polarity = 1
	Dislike Polarity = -1
)

func (p Polarity) Valid() bool { return p == Like || p == Dislike }

// Reaction is one user's vote on a note. There is at most one per (note, user).
type Reaction struct {
	ID        int64
	NoteID    int64
	UserID    int64
	Polarity  Polarity
	CreatedAt time.Time
}

// ReactionAction names the transition applied by a reaction request.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
	ReactionUpdated ReactionAction = "updated"
)

// ReactionResult reports the note's counters after a reaction was applied.
type ReactionResult struct {
	Action   ReactionAction `json:"action"`
	Likes    int64          `json:"likes"`
	Dislikes int64          `json:"dislikes"`
}
