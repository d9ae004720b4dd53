package memstore

import (
	"context"
	"time"

	"github.com/emilythestrangee/post-voting/backend/internal/errs"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
)

type memTx struct {
	st    *state
	store *Store
}

func (t *memTx) FindVote(ctx context.Context, userID int, ref models.VotableRef) (*models.Vote, error) {
	if err := t.store.takeFault("FindVote"); err != nil {
		return nil, err
	}
	v, ok := t.st.votes[voteKey{userID, ref}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (t *memTx) CreateVote(ctx context.Context, userID int, ref models.VotableRef, dir models.VoteDirection, at time.Time) (*models.Vote, error) {
	if err := t.store.takeFault("CreateVote"); err != nil {
		return nil, err
	}
	key := voteKey{userID, ref}
	if _, ok := t.st.votes[key]; ok {
		return nil, errs.ConstraintViolation
	}
	t.st.nextID++
	v := models.Vote{
		ID:          t.st.nextID,
		UserID:      userID,
		VotableID:   ref.ID,
		VotableType: ref.Type,
		Direction:   dir,
		CreatedAt:   at,
	}
	t.st.votes[key] = v
	return &v, nil
}

func (t *memTx) DestroyVote(ctx context.Context, vote *models.Vote) error {
	if err := t.store.takeFault("DestroyVote"); err != nil {
		return err
	}
	key := voteKey{vote.UserID, vote.Ref()}
	existing, ok := t.st.votes[key]
	if !ok || existing.ID != vote.ID {
		return errs.NotFound
	}
	delete(t.st.votes, key)
	return nil
}

func (t *memTx) AdjustCounter(ctx context.Context, ref models.VotableRef, delta int) (int, error) {
	if err := t.store.takeFault("AdjustCounter"); err != nil {
		return 0, err
	}
	v, ok := t.st.votables[ref]
	if !ok || v.deleted {
		return 0, errs.NotFound
	}
	v.count += delta
	t.st.votables[ref] = v
	return v.count, nil
}

func (t *memTx) BulkAdjustAndDeleteByUser(ctx context.Context, userID int) ([]models.VotableRef, error) {
	if err := t.store.takeFault("BulkAdjustAndDeleteByUser"); err != nil {
		return nil, err
	}
	var affected []models.VotableRef
	for key, vote := range t.st.votes {
		if key.userID != userID {
			continue
		}
		// Soft-deleted votables are corrected too so their counters stay
		// equal to the sum of their remaining votes.
		v := t.st.votables[key.ref]
		v.count -= vote.Direction.Sign()
		t.st.votables[key.ref] = v
		affected = append(affected, key.ref)
		delete(t.st.votes, key)
	}
	for key := range t.st.lastVotes {
		if key.userID == userID {
			delete(t.st.lastVotes, key)
		}
	}
	return affected, nil
}

func (t *memTx) LastVotedAt(ctx context.Context, userID int, ref models.VotableRef) (time.Time, bool, error) {
	if err := t.store.takeFault("LastVotedAt"); err != nil {
		return time.Time{}, false, err
	}
	at, ok := t.st.lastVotes[voteKey{userID, ref}]
	return at, ok, nil
}

func (t *memTx) TouchLastVoted(ctx context.Context, userID int, ref models.VotableRef, at time.Time) error {
	if err := t.store.takeFault("TouchLastVoted"); err != nil {
		return err
	}
	t.st.lastVotes[voteKey{userID, ref}] = at
	return nil
}

func (t *memTx) HasVotes(ctx context.Context, ref models.VotableRef) (bool, error) {
	if err := t.store.takeFault("HasVotes"); err != nil {
		return false, err
	}
	for key := range t.st.votes {
		if key.ref == ref {
			return true, nil
		}
	}
	return false, nil
}
