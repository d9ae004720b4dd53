package models

import (
	"fmt"
	"time"
)

// VoteDirection is the direction of a single user's vote.
type VoteDirection string

const (
	DirectionUp   VoteDirection = "up"
	DirectionDown VoteDirection = "down"
)

// ParseVoteDirection accepts "up" or "down". An empty value means up.
func ParseVoteDirection(s string) (VoteDirection, error) {
	switch VoteDirection(s) {
	case "", DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	}
	return "", fmt.Errorf("invalid vote direction %q", s)
}

// Reverse maps up to down and down to up.
func (d VoteDirection) Reverse() VoteDirection {
	if d == DirectionUp {
		return DirectionDown
	}
	return DirectionUp
}

// Sign is the contribution of one vote in this direction to a tally.
func (d VoteDirection) Sign() int {
	if d == DirectionDown {
		return -1
	}
	return 1
}

// VotableType discriminates which table a vote points at.
type VotableType string

const (
	VotablePost    VotableType = "post"
	VotableComment VotableType = "comment"
)

// VotableTypes lists every type that carries a vote_count column.
var VotableTypes = []VotableType{VotablePost, VotableComment}

func ParseVotableType(s string) (VotableType, error) {
	switch VotableType(s) {
	case VotablePost, VotableComment:
		return VotableType(s), nil
	}
	return "", fmt.Errorf("invalid votable type %q", s)
}

// Table returns the table owning the vote_count column for this type.
func (t VotableType) Table() string {
	switch t {
	case VotablePost:
		return "posts"
	case VotableComment:
		return "comments"
	}
	return ""
}

// VotableRef identifies a votable entity without loading it.
type VotableRef struct {
	Type VotableType `json:"votable_type"`
	ID   int         `json:"votable_id"`
}

func (r VotableRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// Vote model - one user's directional opinion on a post or comment.
// At most one row exists per (user, votable); a direction switch deletes the
// row and inserts a new one.
type Vote struct {
	ID          int           `gorm:"primaryKey" json:"id"`
	UserID      int           `gorm:"not null;uniqueIndex:idx_votes_user_votable,priority:1;index" json:"user_id"`
	VotableID   int           `gorm:"not null;uniqueIndex:idx_votes_user_votable,priority:2;index:idx_votes_votable,priority:2" json:"votable_id"`
	VotableType VotableType   `gorm:"type:varchar(16);not null;uniqueIndex:idx_votes_user_votable,priority:3;index:idx_votes_votable,priority:1" json:"votable_type"`
	Direction   VoteDirection `gorm:"type:varchar(4);not null;check:chk_votes_direction,direction IN ('up','down')" json:"direction"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (v Vote) Ref() VotableRef {
	return VotableRef{Type: v.VotableType, ID: v.VotableID}
}

// LastVote records when a user last voted on a votable. The undo window is
// measured from this timestamp.
type LastVote struct {
	UserID      int         `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	VotableID   int         `gorm:"primaryKey;autoIncrement:false" json:"votable_id"`
	VotableType VotableType `gorm:"primaryKey;type:varchar(16)" json:"votable_type"`
	VotedAt     time.Time   `gorm:"not null" json:"voted_at"`
}

// Voter is a row of the voters listing for a votable.
type Voter struct {
	UserID    int           `json:"id"`
	Username  string        `json:"username"`
	Direction VoteDirection `json:"direction"`
	VotedAt   time.Time     `json:"voted_at"`
}
