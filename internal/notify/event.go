// Package notify carries post-commit vote notifications to real-time clients.
//
// Events are advisory refresh hints. Delivery is at-least-once from the
// dispatcher's point of view and best effort end to end; nothing here can
// roll back or retry the vote that produced an event.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emilythestrangee/post-voting/backend/internal/models"
)

// PostVotedType is the SSE event name and message type sent to clients.
const PostVotedType = "post_voting_post_voted"

// PostVoted is published once per committed cast or removal on a post.
type PostVoted struct {
	EventID        string                `json:"event_id"`
	VotableID      int                   `json:"votable_id"`
	VoterUserID    int                   `json:"voter_user_id"`
	NewVoteCount   int                   `json:"new_vote_count"`
	VoterDirection *models.VoteDirection `json:"voter_direction"`
	HasAnyVotes    bool                  `json:"has_any_votes"`
	OccurredAt     time.Time             `json:"occurred_at"`
}

// Publisher delivers an event to one sink.
type Publisher interface {
	Publish(ctx context.Context, event PostVoted) error
}

func newEventID() string {
	return uuid.NewString()
}
