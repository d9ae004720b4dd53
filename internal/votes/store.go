package votes

import (
	"context"
	"time"

	"github.com/emilythestrangee/post-voting/backend/internal/models"
)

// Tx is the set of primitives a VoteStore exposes inside one transaction.
// Implementations must keep every call on the same underlying transaction.
type Tx interface {
	// FindVote returns nil, nil when the user has no vote on ref.
	FindVote(ctx context.Context, userID int, ref models.VotableRef) (*models.Vote, error)
	// CreateVote fails with errs.ConstraintViolation when a vote already
	// exists for (userID, ref).
	CreateVote(ctx context.Context, userID int, ref models.VotableRef, dir models.VoteDirection, at time.Time) (*models.Vote, error)
	// DestroyVote fails with errs.NotFound when the row is already gone.
	DestroyVote(ctx context.Context, vote *models.Vote) error
	// AdjustCounter adds delta to the votable's vote_count in place and
	// returns the new value. Missing or soft-deleted votables give errs.NotFound.
	AdjustCounter(ctx context.Context, ref models.VotableRef, delta int) (int, error)
	// BulkAdjustAndDeleteByUser subtracts every vote by userID from its
	// votable's counter and deletes the votes, one statement per type.
	BulkAdjustAndDeleteByUser(ctx context.Context, userID int) ([]models.VotableRef, error)

	LastVotedAt(ctx context.Context, userID int, ref models.VotableRef) (time.Time, bool, error)
	TouchLastVoted(ctx context.Context, userID int, ref models.VotableRef, at time.Time) error
	HasVotes(ctx context.Context, ref models.VotableRef) (bool, error)
}

// Store is the durable side of the vote manager. WithinTx commits when fn
// returns nil and rolls back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Voters(ctx context.Context, ref models.VotableRef, limit int) ([]models.Voter, error)
}

// Clock is injected so the undo window can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
