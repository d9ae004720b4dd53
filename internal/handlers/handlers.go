package handlers

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/post-voting/backend/internal/config"
	"github.com/emilythestrangee/post-voting/backend/internal/logging"
	"github.com/emilythestrangee/post-voting/backend/internal/middleware"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
	"github.com/emilythestrangee/post-voting/backend/internal/notify"
	"github.com/emilythestrangee/post-voting/backend/internal/votes"
)

// VoteService is the part of the vote manager the HTTP layer drives.
type VoteService interface {
	Cast(ctx context.Context, ref models.VotableRef, userID int, dir models.VoteDirection) (votes.Result, error)
	Remove(ctx context.Context, ref models.VotableRef, userID int) (votes.Result, error)
	Voters(ctx context.Context, ref models.VotableRef, limit int) ([]models.Voter, error)
	BulkRemoveVotesBy(ctx context.Context, userID int) ([]models.VotableRef, error)
}

// Directory resolves votables and users without loading whole rows.
type Directory interface {
	VotableExists(ctx context.Context, ref models.VotableRef) (bool, error)
	FindUser(ctx context.Context, id int) (*models.User, error)
}

// Deps is everything the handlers need from the rest of the process.
type Deps struct {
	DB          *gorm.DB
	Votes       VoteService
	Directory   Directory
	Hub         *notify.Hub
	Voting      config.Voting
	JWTSecret   []byte
	VotersLimit int
	Logger      *slog.Logger
}

// Handler combines all handler types
type Handler struct {
	Auth    *AuthHandler
	Post    *PostHandler
	Comment *CommentHandler
	User    *UserHandler
	Vote    *VoteHandler
	Events  *EventsHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(deps Deps) *Handler {
	registerValidators()
	logger := logging.Resolve(deps.Logger)

	return &Handler{
		Auth:    NewAuthHandler(deps.DB, deps.JWTSecret),
		Post:    NewPostHandler(deps.DB, logger),
		Comment: NewCommentHandler(deps.DB, deps.Voting),
		User:    NewUserHandler(deps.DB, deps.Votes, deps.Directory, deps.Voting, logger),
		Vote:    NewVoteHandler(deps.Votes, deps.Directory, deps.VotersLimit, logger),
		Events:  NewEventsHandler(deps.Hub, logger),
	}
}

func extractUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case uint:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
