// Package memstore is an in-memory vote store with the same transactional
// semantics as the Postgres one. Tests use it to drive the vote manager and
// the HTTP handlers without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/emilythestrangee/post-voting/backend/internal/errs"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
	"github.com/emilythestrangee/post-voting/backend/internal/votes"
)

type voteKey struct {
	userID int
	ref    models.VotableRef
}

type votable struct {
	count   int
	deleted bool
}

type state struct {
	nextID    int
	votes     map[voteKey]models.Vote
	votables  map[models.VotableRef]votable
	lastVotes map[voteKey]time.Time
}

func (s *state) clone() *state {
	c := &state{
		nextID:    s.nextID,
		votes:     make(map[voteKey]models.Vote, len(s.votes)),
		votables:  make(map[models.VotableRef]votable, len(s.votables)),
		lastVotes: make(map[voteKey]time.Time, len(s.lastVotes)),
	}
	for k, v := range s.votes {
		c.votes[k] = v
	}
	for k, v := range s.votables {
		c.votables[k] = v
	}
	for k, v := range s.lastVotes {
		c.lastVotes[k] = v
	}
	return c
}

// Store serialises transactions: each one works on a private copy of the
// state that replaces the shared state only on commit.
type Store struct {
	mu     sync.Mutex
	st     *state
	users  map[int]models.User
	faults map[string]error
}

var _ votes.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		st: &state{
			votes:     make(map[voteKey]models.Vote),
			votables:  make(map[models.VotableRef]votable),
			lastVotes: make(map[voteKey]time.Time),
		},
		users:  make(map[int]models.User),
		faults: make(map[string]error),
	}
}

// AddVotable creates a votable with an initial count.
func (s *Store) AddVotable(ref models.VotableRef, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.votables[ref] = votable{count: count}
}

// SoftDelete marks a votable deleted. Its votes and counter are kept.
func (s *Store) SoftDelete(ref models.VotableRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.st.votables[ref]
	v.deleted = true
	s.st.votables[ref] = v
}

func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// InjectFault makes the next call to op fail with err. op is a Tx method
// name such as "AdjustCounter".
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// Count returns the stored counter, including for soft-deleted votables.
func (s *Store) Count(ref models.VotableRef) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.votables[ref].count
}

// Votes returns every committed vote ordered by id.
func (s *Store) Votes() []models.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Vote, 0, len(s.st.votes))
	for _, v := range s.st.votes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetLastVotedAt overrides the undo-window clock for a (user, votable) pair.
func (s *Store) SetLastVotedAt(userID int, ref models.VotableRef, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.lastVotes[voteKey{userID, ref}] = at
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx votes.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{st: s.st.clone(), store: s}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) Voters(ctx context.Context, ref models.VotableRef, limit int) ([]models.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var voters []models.Voter
	for k, v := range s.st.votes {
		if k.ref != ref {
			continue
		}
		voters = append(voters, models.Voter{
			UserID:    v.UserID,
			Username:  s.users[v.UserID].Username,
			Direction: v.Direction,
			VotedAt:   v.CreatedAt,
		})
	}
	sort.Slice(voters, func(i, j int) bool {
		if voters[i].VotedAt.Equal(voters[j].VotedAt) {
			return voters[i].UserID < voters[j].UserID
		}
		return voters[i].VotedAt.After(voters[j].VotedAt)
	})
	if limit > 0 && len(voters) > limit {
		voters = voters[:limit]
	}
	return voters, nil
}

func (s *Store) VotableExists(ctx context.Context, ref models.VotableRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st.votables[ref]
	return ok && !v.deleted, nil
}

func (s *Store) FindUser(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.NotFound
	}
	return &u, nil
}

// takeFault must be called with s.mu held, which WithinTx guarantees.
func (s *Store) takeFault(op string) error {
	err := s.faults[op]
	delete(s.faults, op)
	return err
}
