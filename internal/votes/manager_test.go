package votes_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/post-voting/backend/internal/config"
	"github.com/emilythestrangee/post-voting/backend/internal/errs"
	"github.com/emilythestrangee/post-voting/backend/internal/memstore"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
	"github.com/emilythestrangee/post-voting/backend/internal/notify"
	"github.com/emilythestrangee/post-voting/backend/internal/votes"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.PostVoted
}

func (n *recordingNotifier) Enqueue(ev notify.PostVoted) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return true
}

func (n *recordingNotifier) Events() []notify.PostVoted {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.PostVoted(nil), n.events...)
}

var (
	post    = models.VotableRef{Type: models.VotablePost, ID: 1}
	post2   = models.VotableRef{Type: models.VotablePost, ID: 2}
	comment = models.VotableRef{Type: models.VotableComment, ID: 1}
)

type fixture struct {
	store    *memstore.Store
	clock    *fakeClock
	notifier *recordingNotifier
	manager  *votes.Manager
}

func newFixture(t *testing.T, window int) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
	}
	f.store.AddVotable(post, 0)
	f.store.AddVotable(post2, 0)
	f.store.AddVotable(comment, 0)
	f.manager = votes.NewManager(f.store,
		config.Voting{UndoWindowMinutes: window, MinTrustToFlag: 1},
		votes.WithClock(f.clock),
		votes.WithNotifier(f.notifier),
	)
	return f
}

func recount(store *memstore.Store, ref models.VotableRef) int {
	sum := 0
	for _, v := range store.Votes() {
		if v.Ref() == ref {
			sum += v.Direction.Sign()
		}
	}
	return sum
}

func TestCastUp(t *testing.T) {
	f := newFixture(t, 10)

	res, err := f.manager.Cast(context.Background(), post, 7, models.DirectionUp)
	require.NoError(t, err)

	assert.Equal(t, 1, res.VoteCount)
	require.NotNil(t, res.Direction)
	assert.Equal(t, models.DirectionUp, *res.Direction)
	assert.True(t, res.HasVotes)
	assert.Equal(t, 1, f.store.Count(post))
}

func TestCastDefaultsToUp(t *testing.T) {
	f := newFixture(t, 10)

	res, err := f.manager.Cast(context.Background(), post, 7, "")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionUp, *res.Direction)
	assert.Equal(t, 1, res.VoteCount)
}

func TestCastSameDirectionTwice(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	before := f.store.Count(post)

	_, err = f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.ErrorIs(t, err, errs.AlreadyVoted)

	assert.Equal(t, before, f.store.Count(post))
	assert.Len(t, f.store.Votes(), 1)
	assert.Len(t, f.notifier.Events(), 1, "a rejected cast publishes nothing")
}

func TestCastSwitchDirection(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	up, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	down, err := f.manager.Cast(ctx, post, 7, models.DirectionDown)
	require.NoError(t, err)

	assert.Equal(t, -2, down.VoteCount-up.VoteCount)
	rows := f.store.Votes()
	require.Len(t, rows, 1)
	assert.Equal(t, models.DirectionDown, rows[0].Direction)

	back, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	assert.Equal(t, 2, back.VoteCount-down.VoteCount)
}

func TestCastThenRemoveRestoresCount(t *testing.T) {
	f := newFixture(t, 10)
	f.store.AddVotable(post, 5)
	ctx := context.Background()

	for _, dir := range []models.VoteDirection{models.DirectionUp, models.DirectionDown} {
		_, err := f.manager.Cast(ctx, post, 7, dir)
		require.NoError(t, err)
		res, err := f.manager.Remove(ctx, post, 7)
		require.NoError(t, err)
		assert.Equal(t, 5, res.VoteCount, dir)
		assert.Nil(t, res.Direction)
		assert.False(t, res.HasVotes)
	}
	assert.Empty(t, f.store.Votes())
}

func TestRemoveWithoutVote(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.manager.Remove(context.Background(), post, 7)
	require.ErrorIs(t, err, errs.NoExistingVote)
	assert.Empty(t, f.notifier.Events())
}

func TestConcurrentVotersAllCount(t *testing.T) {
	f := newFixture(t, 10)
	const voters = 50

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 1; i <= voters; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			if _, err := f.manager.Cast(context.Background(), post, userID, models.DirectionUp); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	assert.Equal(t, voters, f.store.Count(post))
	assert.Len(t, f.notifier.Events(), voters)
}

func TestUndoWindowExpired(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	ok, err := f.manager.CanUndo(ctx, post, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.manager.Remove(ctx, post, 7)
	require.ErrorIs(t, err, errs.UndoWindowExpired)
	var windowErr *errs.UndoWindowError
	require.True(t, errors.As(err, &windowErr))
	assert.Equal(t, 1, windowErr.Minutes)

	assert.Equal(t, 1, f.store.Count(post))
	assert.Len(t, f.store.Votes(), 1)
	assert.Len(t, f.notifier.Events(), 1)
}

func TestUndoWindowBoundary(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)

	f.clock.Advance(59 * time.Second)
	ok, err := f.manager.CanUndo(ctx, post, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	f.clock.Advance(time.Second)
	ok, err = f.manager.CanUndo(ctx, post, 7)
	require.NoError(t, err)
	assert.False(t, ok, "the window is exclusive of its end")
}

func TestUndoWindowRestartsOnEveryCast(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	f.clock.Advance(50 * time.Second)
	_, err = f.manager.Cast(ctx, post, 7, models.DirectionDown)
	require.NoError(t, err)
	f.clock.Advance(50 * time.Second)

	_, err = f.manager.Remove(ctx, post, 7)
	require.NoError(t, err)
}

func TestUndoWindowDisabled(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)

	_, err = f.manager.Remove(ctx, post, 7)
	require.NoError(t, err)
}

func TestCanUndoWithoutRecord(t *testing.T) {
	f := newFixture(t, 1)

	ok, err := f.manager.CanUndo(context.Background(), post, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUndoWindowIsPerVotable(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)
	_, err = f.manager.Cast(ctx, post2, 7, models.DirectionUp)
	require.NoError(t, err)

	_, err = f.manager.Remove(ctx, post2, 7)
	require.NoError(t, err)
	_, err = f.manager.Remove(ctx, post, 7)
	require.ErrorIs(t, err, errs.UndoWindowExpired)
}

func TestBulkRemoveVotesBy(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	const spammer = 66

	casts := []struct {
		ref    models.VotableRef
		userID int
		dir    models.VoteDirection
	}{
		{post, spammer, models.DirectionUp},
		{post2, spammer, models.DirectionDown},
		{comment, spammer, models.DirectionUp},
		{post, 2, models.DirectionUp},
		{post2, 3, models.DirectionUp},
		{comment, 3, models.DirectionDown},
	}
	for _, c := range casts {
		_, err := f.manager.Cast(ctx, c.ref, c.userID, c.dir)
		require.NoError(t, err)
	}
	f.store.SoftDelete(post2)
	published := len(f.notifier.Events())

	affected, err := f.manager.BulkRemoveVotesBy(ctx, spammer)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.VotableRef{post, post2, comment}, affected)

	for _, ref := range []models.VotableRef{post, post2, comment} {
		assert.Equal(t, recount(f.store, ref), f.store.Count(ref), ref.String())
	}
	for _, v := range f.store.Votes() {
		assert.NotEqual(t, spammer, v.UserID)
	}
	assert.Len(t, f.notifier.Events(), published, "bulk purge publishes nothing")

	ok, err := f.manager.CanUndo(ctx, post, spammer)
	require.NoError(t, err)
	assert.True(t, ok, "purged users start with no undo clock")
}

func TestBulkRemoveVotesByRollsBack(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	f.store.InjectFault("BulkAdjustAndDeleteByUser", errors.New("connection reset"))

	_, err = f.manager.BulkRemoveVotesBy(ctx, 7)
	require.Error(t, err)
	assert.Equal(t, 1, f.store.Count(post))
	assert.Len(t, f.store.Votes(), 1)
}

func TestScenarioUpDownRemove(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	const userA, userB = 1, 2

	_, err := f.manager.Cast(ctx, post, userA, models.DirectionUp)
	require.NoError(t, err)
	_, err = f.manager.Cast(ctx, post, userB, models.DirectionDown)
	require.NoError(t, err)
	res, err := f.manager.Remove(ctx, post, userA)
	require.NoError(t, err)

	assert.Equal(t, -1, res.VoteCount)
	assert.Equal(t, -1, f.store.Count(post))
	rows := f.store.Votes()
	require.Len(t, rows, 1)
	assert.Equal(t, userB, rows[0].UserID)
	assert.Equal(t, models.DirectionDown, rows[0].Direction)
}

func TestNotificationAfterCommit(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionDown)
	require.NoError(t, err)
	_, err = f.manager.Remove(ctx, post, 7)
	require.NoError(t, err)

	events := f.notifier.Events()
	require.Len(t, events, 2)

	cast := events[0]
	assert.Equal(t, post.ID, cast.VotableID)
	assert.Equal(t, 7, cast.VoterUserID)
	assert.Equal(t, -1, cast.NewVoteCount)
	require.NotNil(t, cast.VoterDirection)
	assert.Equal(t, models.DirectionDown, *cast.VoterDirection)
	assert.True(t, cast.HasAnyVotes)

	removal := events[1]
	assert.Equal(t, 0, removal.NewVoteCount)
	assert.Nil(t, removal.VoterDirection)
	assert.False(t, removal.HasAnyVotes)
}

func TestNoNotificationOnRollback(t *testing.T) {
	f := newFixture(t, 10)
	f.store.InjectFault("AdjustCounter", errors.New("connection reset"))

	_, err := f.manager.Cast(context.Background(), post, 7, models.DirectionUp)
	require.Error(t, err)

	assert.Empty(t, f.notifier.Events())
	assert.Empty(t, f.store.Votes(), "the vote insert rolls back with the counter")
	assert.Zero(t, f.store.Count(post))
}

func TestCancelledContextChangesNothing(t *testing.T) {
	f := newFixture(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.Votes())
	assert.Empty(t, f.notifier.Events())
}

func TestCommentVotesAreNotPublished(t *testing.T) {
	f := newFixture(t, 10)

	res, err := f.manager.Cast(context.Background(), comment, 7, models.DirectionUp)
	require.NoError(t, err)
	assert.Equal(t, 1, res.VoteCount)
	assert.Empty(t, f.notifier.Events())
}

func TestConstraintViolationIsAlreadyVoted(t *testing.T) {
	f := newFixture(t, 10)
	f.store.InjectFault("CreateVote", errs.ConstraintViolation)

	_, err := f.manager.Cast(context.Background(), post, 7, models.DirectionUp)
	require.ErrorIs(t, err, errs.AlreadyVoted)
	assert.Zero(t, f.store.Count(post))
	assert.Empty(t, f.notifier.Events())
}

func TestSwitchLosesRaceIsAlreadyVoted(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	f.store.InjectFault("DestroyVote", errs.NotFound)

	_, err = f.manager.Cast(ctx, post, 7, models.DirectionDown)
	require.ErrorIs(t, err, errs.AlreadyVoted)
	assert.NotErrorIs(t, err, errs.NotFound)
	assert.Equal(t, 1, f.store.Count(post))
	assert.Len(t, f.notifier.Events(), 1)
}

func TestRemoveLosesRaceIsNoExistingVote(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 7, models.DirectionUp)
	require.NoError(t, err)
	f.store.InjectFault("DestroyVote", errs.NotFound)

	_, err = f.manager.Remove(ctx, post, 7)
	require.ErrorIs(t, err, errs.NoExistingVote)
	assert.NotErrorIs(t, err, errs.NotFound)
	assert.Equal(t, 1, f.store.Count(post))
	assert.Len(t, f.notifier.Events(), 1)
}

func TestCastOnMissingOrDeletedVotable(t *testing.T) {
	f := newFixture(t, 10)
	f.store.SoftDelete(post2)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post2, 7, models.DirectionUp)
	require.ErrorIs(t, err, errs.NotFound)

	_, err = f.manager.Cast(ctx, models.VotableRef{Type: models.VotablePost, ID: 404}, 7, models.DirectionUp)
	require.ErrorIs(t, err, errs.NotFound)
	assert.Empty(t, f.store.Votes())
}

func TestInvalidInput(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.manager.Cast(ctx, post, 0, models.DirectionUp)
	assert.ErrorIs(t, err, errs.InvalidInput)
	_, err = f.manager.Cast(ctx, post, 7, "sideways")
	assert.ErrorIs(t, err, errs.InvalidInput)
	_, err = f.manager.Cast(ctx, models.VotableRef{Type: "topic", ID: 1}, 7, models.DirectionUp)
	assert.ErrorIs(t, err, errs.InvalidInput)
	_, err = f.manager.Remove(ctx, models.VotableRef{Type: models.VotablePost}, 7)
	assert.ErrorIs(t, err, errs.InvalidInput)
	_, err = f.manager.BulkRemoveVotesBy(ctx, -1)
	assert.ErrorIs(t, err, errs.InvalidInput)
}

func TestVoters(t *testing.T) {
	f := newFixture(t, 10)
	f.store.AddUser(models.User{ID: 1, Username: "ann"})
	f.store.AddUser(models.User{ID: 2, Username: "bob"})
	f.store.AddUser(models.User{ID: 3, Username: "cat"})
	ctx := context.Background()

	for id := 1; id <= 3; id++ {
		dir := models.DirectionUp
		if id == 2 {
			dir = models.DirectionDown
		}
		_, err := f.manager.Cast(ctx, post, id, dir)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	voters, err := f.manager.Voters(ctx, post, 2)
	require.NoError(t, err)
	require.Len(t, voters, 2)
	assert.Equal(t, "cat", voters[0].Username)
	assert.Equal(t, "bob", voters[1].Username)
	assert.Equal(t, models.DirectionDown, voters[1].Direction)
}
