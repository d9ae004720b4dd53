// Package votes keeps per-item vote tallies consistent with the individual
// vote rows. Every operation runs in one store transaction and notifies
// real-time clients only after that transaction commits.
package votes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/emilythestrangee/post-voting/backend/internal/config"
	"github.com/emilythestrangee/post-voting/backend/internal/errs"
	"github.com/emilythestrangee/post-voting/backend/internal/logging"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
	"github.com/emilythestrangee/post-voting/backend/internal/notify"
)

// Notifier receives post-commit events. It must not block.
type Notifier interface {
	Enqueue(event notify.PostVoted) bool
}

// Result is the state of a votable after a cast or removal.
type Result struct {
	Ref       models.VotableRef
	VoteCount int
	// Direction is nil after a removal.
	Direction *models.VoteDirection
	HasVotes  bool
}

// Manager applies vote casts and removals and keeps every counter in step.
type Manager struct {
	store    Store
	settings config.Voting
	notifier Notifier
	clock    Clock
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets where post-commit events go. Without one nothing is published.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithClock replaces the wall clock used for vote times and the undo window.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds a Manager over store with the given voting settings.
func NewManager(store Store, settings config.Voting, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		settings: settings,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.Resolve(m.logger)
	return m
}

// Settings returns the configuration the manager was built with.
func (m *Manager) Settings() config.Voting {
	return m.settings
}

// Cast records userID's vote on ref in direction dir, replacing an opposite
// vote if there is one. Casting the direction already held fails with
// errs.AlreadyVoted and changes nothing.
func (m *Manager) Cast(ctx context.Context, ref models.VotableRef, userID int, dir models.VoteDirection) (Result, error) {
	if dir == "" {
		dir = models.DirectionUp
	}
	if err := validate(ref, userID); err != nil {
		return Result{}, err
	}
	if dir != models.DirectionUp && dir != models.DirectionDown {
		return Result{}, errs.InvalidInput
	}

	now := m.clock.Now().UTC()
	res := Result{Ref: ref, Direction: &dir, HasVotes: true}
	err := m.store.WithinTx(ctx, func(tx Tx) error {
		existing, err := tx.FindVote(ctx, userID, ref)
		if err != nil {
			return err
		}

		change := dir.Sign()
		if existing != nil {
			if existing.Direction == dir {
				return errs.AlreadyVoted
			}
			// The old vote leaves the tally and the new one enters it.
			change = 2 * dir.Sign()
			if err := tx.DestroyVote(ctx, existing); err != nil {
				// A concurrent request by the same user replaced the vote first.
				if errors.Is(err, errs.NotFound) {
					return errs.ConstraintViolation
				}
				return err
			}
		}

		if _, err := tx.CreateVote(ctx, userID, ref, dir, now); err != nil {
			return err
		}
		count, err := tx.AdjustCounter(ctx, ref, change)
		if err != nil {
			return err
		}
		res.VoteCount = count
		return tx.TouchLastVoted(ctx, userID, ref, now)
	})
	if err != nil {
		if errors.Is(err, errs.ConstraintViolation) {
			m.logger.Info("concurrent duplicate vote rejected",
				"event", "votes_cast_constraint_violation",
				"module", "votes",
				"layer", "manager",
				"votable", ref.String(),
				"user_id", userID,
			)
			return Result{}, errs.AlreadyVoted
		}
		if !isExpected(err) {
			m.logFailure("votes_cast_failed", err, ref, userID)
		}
		return Result{}, err
	}

	m.logger.Info("vote cast",
		"event", "votes_cast",
		"module", "votes",
		"layer", "manager",
		"votable", ref.String(),
		"user_id", userID,
		"direction", string(dir),
		"vote_count", res.VoteCount,
	)
	m.publish(res, userID, now)
	return res, nil
}

// Remove retracts userID's vote on ref. It fails with errs.NoExistingVote
// when there is nothing to retract and with *errs.UndoWindowError once the
// undo window has passed. The window check and the mutation share one
// transaction.
func (m *Manager) Remove(ctx context.Context, ref models.VotableRef, userID int) (Result, error) {
	if err := validate(ref, userID); err != nil {
		return Result{}, err
	}

	now := m.clock.Now().UTC()
	res := Result{Ref: ref}
	err := m.store.WithinTx(ctx, func(tx Tx) error {
		existing, err := tx.FindVote(ctx, userID, ref)
		if err != nil {
			return err
		}
		if existing == nil {
			return errs.NoExistingVote
		}

		ok, err := m.canUndo(ctx, tx, ref, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return &errs.UndoWindowError{Minutes: m.settings.UndoWindowMinutes}
		}

		if err := tx.DestroyVote(ctx, existing); err != nil {
			if errors.Is(err, errs.NotFound) {
				return errs.NoExistingVote
			}
			return err
		}
		count, err := tx.AdjustCounter(ctx, ref, -existing.Direction.Sign())
		if err != nil {
			return err
		}
		res.VoteCount = count

		res.HasVotes, err = tx.HasVotes(ctx, ref)
		return err
	})
	if err != nil {
		if !isExpected(err) {
			m.logFailure("votes_remove_failed", err, ref, userID)
		}
		return Result{}, err
	}

	m.logger.Info("vote removed",
		"event", "votes_removed",
		"module", "votes",
		"layer", "manager",
		"votable", ref.String(),
		"user_id", userID,
		"vote_count", res.VoteCount,
	)
	m.publish(res, userID, now)
	return res, nil
}

// CanUndo reports whether userID may still retract a vote on ref.
func (m *Manager) CanUndo(ctx context.Context, ref models.VotableRef, userID int) (bool, error) {
	var ok bool
	err := m.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		ok, err = m.canUndo(ctx, tx, ref, userID, m.clock.Now().UTC())
		return err
	})
	return ok, err
}

// canUndo measures from the last vote on this exact votable, so a comment
// vote is gated by its own clock rather than its post's.
func (m *Manager) canUndo(ctx context.Context, tx Tx, ref models.VotableRef, userID int, now time.Time) (bool, error) {
	window := time.Duration(m.settings.UndoWindowMinutes) * time.Minute
	if window <= 0 {
		return true, nil
	}
	last, found, err := tx.LastVotedAt(ctx, userID, ref)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return now.Sub(last) < window, nil
}

// BulkRemoveVotesBy deletes every vote userID has cast and corrects the
// affected counters in the same transaction. No notifications are sent.
func (m *Manager) BulkRemoveVotesBy(ctx context.Context, userID int) ([]models.VotableRef, error) {
	if userID <= 0 {
		return nil, errs.InvalidInput
	}
	var affected []models.VotableRef
	err := m.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		affected, err = tx.BulkAdjustAndDeleteByUser(ctx, userID)
		return err
	})
	if err != nil {
		m.logger.Error("bulk vote purge failed",
			"event", "votes_bulk_remove_failed",
			"module", "votes",
			"layer", "manager",
			"user_id", userID,
			"error", err.Error(),
		)
		return nil, err
	}
	m.logger.Info("bulk vote purge completed",
		"event", "votes_bulk_removed",
		"module", "votes",
		"layer", "manager",
		"user_id", userID,
		"affected_votables", len(affected),
	)
	return affected, nil
}

// Voters lists who voted on ref, newest first, capped at limit.
func (m *Manager) Voters(ctx context.Context, ref models.VotableRef, limit int) ([]models.Voter, error) {
	if ref.Type.Table() == "" || ref.ID <= 0 {
		return nil, errs.InvalidInput
	}
	return m.store.Voters(ctx, ref, limit)
}

func (m *Manager) publish(res Result, userID int, at time.Time) {
	if m.notifier == nil || res.Ref.Type != models.VotablePost {
		return
	}
	m.notifier.Enqueue(notify.PostVoted{
		VotableID:      res.Ref.ID,
		VoterUserID:    userID,
		NewVoteCount:   res.VoteCount,
		VoterDirection: res.Direction,
		HasAnyVotes:    res.HasVotes,
		OccurredAt:     at,
	})
}

func (m *Manager) logFailure(event string, err error, ref models.VotableRef, userID int) {
	m.logger.Error("vote operation failed",
		"event", event,
		"module", "votes",
		"layer", "manager",
		"votable", ref.String(),
		"user_id", userID,
		"error", err.Error(),
	)
}

func validate(ref models.VotableRef, userID int) error {
	if userID <= 0 || ref.ID <= 0 || ref.Type.Table() == "" {
		return errs.InvalidInput
	}
	return nil
}

func isExpected(err error) bool {
	return errors.Is(err, errs.AlreadyVoted) ||
		errors.Is(err, errs.NoExistingVote) ||
		errors.Is(err, errs.UndoWindowExpired) ||
		errors.Is(err, errs.NotFound)
}
