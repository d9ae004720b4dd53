package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/post-voting/backend/internal/config"
	"github.com/emilythestrangee/post-voting/backend/internal/errs"
	"github.com/emilythestrangee/post-voting/backend/internal/guardian"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
)

type UserHandler struct {
	db       *gorm.DB
	votes    VoteService
	dir      Directory
	settings config.Voting
	logger   *slog.Logger
}

func NewUserHandler(db *gorm.DB, votes VoteService, dir Directory, settings config.Voting, logger *slog.Logger) *UserHandler {
	return &UserHandler{db: db, votes: votes, dir: dir, settings: settings, logger: logger}
}

// GetUserProfile returns a user's profile, their posts and the sum of the
// vote counts of those posts
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID := c.Param("id")
	db := h.db.WithContext(c.Request.Context())

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	posts := []models.Post{}
	if err := db.Where("user_id = ?", user.ID).Order("created_at desc").Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user posts"})
		return
	}

	var voteCount int64
	if err := db.Model(&models.Post{}).
		Where("user_id = ?", user.ID).
		Select("COALESCE(SUM(vote_count), 0)").
		Scan(&voteCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vote count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"posts":      posts,
		"vote_count": voteCount,
	})
}

// PurgeVotes removes every vote a user has cast and corrects the affected
// tallies (PROTECTED - admins, or the user themselves)
func (h *UserHandler) PurgeVotes(c *gin.Context) {
	actorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	targetID, err := strconv.Atoi(c.Param("id"))
	if err != nil || targetID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	ctx := c.Request.Context()
	actor, err := h.dir.FindUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		respondError(c, h.logger, err)
		return
	}
	if !guardian.New(actor, h.settings).CanPurgeVotes(targetID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot remove this user's votes"})
		return
	}
	if _, err := h.dir.FindUser(ctx, targetID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	affected, err := h.votes.BulkRemoveVotesBy(ctx, targetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if affected == nil {
		affected = []models.VotableRef{}
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  targetID,
		"affected": affected,
	})
}
