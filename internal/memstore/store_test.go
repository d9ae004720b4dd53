package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/post-voting/backend/internal/errs"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
	"github.com/emilythestrangee/post-voting/backend/internal/votes"
)

var post = models.VotableRef{Type: models.VotablePost, ID: 1}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := New()
	s.AddVotable(post, 0)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx votes.Tx) error {
		_, err := tx.CreateVote(ctx, 1, post, models.DirectionUp, time.Now())
		require.NoError(t, err)
		_, err = tx.AdjustCounter(ctx, post, 1)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, s.Votes())
	assert.Zero(t, s.Count(post))
}

func TestCreateVoteEnforcesUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx votes.Tx) error {
		if _, err := tx.CreateVote(ctx, 1, post, models.DirectionUp, time.Now()); err != nil {
			return err
		}
		_, err := tx.CreateVote(ctx, 1, post, models.DirectionDown, time.Now())
		return err
	})
	assert.ErrorIs(t, err, errs.ConstraintViolation)
}

func TestAdjustCounterSkipsSoftDeleted(t *testing.T) {
	s := New()
	s.AddVotable(post, 3)
	s.SoftDelete(post)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx votes.Tx) error {
		_, err := tx.AdjustCounter(ctx, post, 1)
		return err
	})
	assert.ErrorIs(t, err, errs.NotFound)
	assert.Equal(t, 3, s.Count(post))

	ok, err := s.VotableExists(ctx, post)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInjectedFaultFiresOnce(t *testing.T) {
	s := New()
	s.AddVotable(post, 0)
	ctx := context.Background()
	s.InjectFault("HasVotes", errors.New("flaky"))

	hasVotes := func() error {
		return s.WithinTx(ctx, func(tx votes.Tx) error {
			_, err := tx.HasVotes(ctx, post)
			return err
		})
	}
	assert.Error(t, hasVotes())
	assert.NoError(t, hasVotes())
}

func TestFindUser(t *testing.T) {
	s := New()
	s.AddUser(models.User{ID: 4, Username: "dana"})

	u, err := s.FindUser(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "dana", u.Username)

	_, err = s.FindUser(context.Background(), 5)
	assert.ErrorIs(t, err, errs.NotFound)
}
