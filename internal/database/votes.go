package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/post-voting/backend/internal/errs"
	"github.com/emilythestrangee/post-voting/backend/internal/logging"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
	"github.com/emilythestrangee/post-voting/backend/internal/votes"
)

// VoteStore keeps votes, vote counters and last-vote timestamps in Postgres.
type VoteStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ votes.Store = (*VoteStore)(nil)

func NewVoteStore(db *gorm.DB, logger *slog.Logger) *VoteStore {
	return &VoteStore{db: db, logger: logging.Resolve(logger)}
}

// WithinTx runs fn in a database transaction bound to ctx. Cancelling ctx
// before commit rolls the transaction back.
func (s *VoteStore) WithinTx(ctx context.Context, fn func(tx votes.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&voteTx{db: tx, logger: s.logger})
	})
}

func (s *VoteStore) Voters(ctx context.Context, ref models.VotableRef, limit int) ([]models.Voter, error) {
	q := s.db.WithContext(ctx).
		Table("votes AS v").
		Select("v.user_id, u.username, v.direction, v.created_at AS voted_at").
		Joins("JOIN users AS u ON u.id = v.user_id").
		Where("v.votable_type = ? AND v.votable_id = ?", ref.Type, ref.ID).
		Order("v.created_at DESC, v.user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	voters := []models.Voter{}
	if err := q.Scan(&voters).Error; err != nil {
		return nil, logError(s.logger, "votes_store_voters_failed", err, "votable", ref.String())
	}
	return voters, nil
}

// VotableExists reports whether ref names a row that is not soft-deleted.
func (s *VoteStore) VotableExists(ctx context.Context, ref models.VotableRef) (bool, error) {
	table := ref.Type.Table()
	if table == "" {
		return false, errs.InvalidInput
	}
	var n int64
	err := s.db.WithContext(ctx).
		Table(table).
		Where("id = ? AND deleted_at IS NULL", ref.ID).
		Count(&n).Error
	if err != nil {
		return false, logError(s.logger, "votes_store_votable_exists_failed", err, "votable", ref.String())
	}
	return n > 0, nil
}

func (s *VoteStore) FindUser(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound
		}
		return nil, logError(s.logger, "votes_store_find_user_failed", err, "user_id", id)
	}
	return &user, nil
}

type voteTx struct {
	db     *gorm.DB
	logger *slog.Logger
}

func (t *voteTx) FindVote(ctx context.Context, userID int, ref models.VotableRef) (*models.Vote, error) {
	// FOR UPDATE makes a concurrent request by the same user wait here. Once
	// the winner commits, the loser sees the row as gone.
	var vote models.Vote
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND votable_type = ? AND votable_id = ?", userID, ref.Type, ref.ID).
		Take(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding vote: %w", err)
	}
	return &vote, nil
}

func (t *voteTx) CreateVote(ctx context.Context, userID int, ref models.VotableRef, dir models.VoteDirection, at time.Time) (*models.Vote, error) {
	vote := models.Vote{
		UserID:      userID,
		VotableID:   ref.ID,
		VotableType: ref.Type,
		Direction:   dir,
		CreatedAt:   at,
	}
	if err := t.db.WithContext(ctx).Create(&vote).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, errs.ConstraintViolation
		}
		return nil, fmt.Errorf("creating vote: %w", err)
	}
	return &vote, nil
}

func (t *voteTx) DestroyVote(ctx context.Context, vote *models.Vote) error {
	res := t.db.WithContext(ctx).Delete(&models.Vote{}, vote.ID)
	if res.Error != nil {
		return fmt.Errorf("deleting vote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound
	}
	return nil
}

// AdjustCounter moves the counter in a single statement so concurrent voters
// on the same row serialise on its row lock instead of overwriting each other.
func (t *voteTx) AdjustCounter(ctx context.Context, ref models.VotableRef, delta int) (int, error) {
	table := ref.Type.Table()
	if table == "" {
		return 0, errs.InvalidInput
	}
	var counts []int
	err := t.db.WithContext(ctx).Raw(
		fmt.Sprintf(`UPDATE %s SET vote_count = vote_count + ? WHERE id = ? AND deleted_at IS NULL RETURNING vote_count`, table),
		delta, ref.ID,
	).Scan(&counts).Error
	if err != nil {
		return 0, fmt.Errorf("adjusting %s counter: %w", ref, err)
	}
	if len(counts) == 0 {
		return 0, errs.NotFound
	}
	return counts[0], nil
}

func (t *voteTx) BulkAdjustAndDeleteByUser(ctx context.Context, userID int) ([]models.VotableRef, error) {
	db := t.db.WithContext(ctx)
	var affected []models.VotableRef

	for _, typ := range models.VotableTypes {
		// Counters of soft-deleted rows are corrected as well.
		var ids []int
		err := db.Raw(fmt.Sprintf(`
UPDATE %s AS t
SET vote_count = t.vote_count - v.delta
FROM (
	SELECT votable_id,
	       SUM(CASE direction WHEN ? THEN 1 WHEN ? THEN -1 ELSE 0 END) AS delta
	FROM votes
	WHERE user_id = ? AND votable_type = ?
	GROUP BY votable_id
) AS v
WHERE t.id = v.votable_id
RETURNING t.id`, typ.Table()),
			models.DirectionUp, models.DirectionDown, userID, typ,
		).Scan(&ids).Error
		if err != nil {
			return nil, fmt.Errorf("adjusting %s counters: %w", typ, err)
		}
		for _, id := range ids {
			affected = append(affected, models.VotableRef{Type: typ, ID: id})
		}
	}

	if err := db.Where("user_id = ?", userID).Delete(&models.Vote{}).Error; err != nil {
		return nil, fmt.Errorf("deleting votes: %w", err)
	}
	if err := db.Where("user_id = ?", userID).Delete(&models.LastVote{}).Error; err != nil {
		return nil, fmt.Errorf("deleting last votes: %w", err)
	}
	return affected, nil
}

func (t *voteTx) LastVotedAt(ctx context.Context, userID int, ref models.VotableRef) (time.Time, bool, error) {
	var last models.LastVote
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND votable_type = ? AND votable_id = ?", userID, ref.Type, ref.ID).
		Take(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("reading last vote: %w", err)
	}
	return last.VotedAt, true, nil
}

func (t *voteTx) TouchLastVoted(ctx context.Context, userID int, ref models.VotableRef, at time.Time) error {
	row := models.LastVote{
		UserID:      userID,
		VotableID:   ref.ID,
		VotableType: ref.Type,
		VotedAt:     at,
	}
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "votable_id"}, {Name: "votable_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"voted_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("recording last vote: %w", err)
	}
	return nil
}

func (t *voteTx) HasVotes(ctx context.Context, ref models.VotableRef) (bool, error) {
	var exists bool
	err := t.db.WithContext(ctx).Raw(
		`SELECT EXISTS (SELECT 1 FROM votes WHERE votable_type = ? AND votable_id = ?)`,
		ref.Type, ref.ID,
	).Scan(&exists).Error
	if err != nil {
		return false, fmt.Errorf("checking votes: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func logError(logger *slog.Logger, event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "database",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	logger.Error("vote store operation failed", fields...)
	return err
}
