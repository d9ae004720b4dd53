package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/post-voting/backend/internal/models"
)

type VoteHandler struct {
	votes       VoteService
	dir         Directory
	votersLimit int
	logger      *slog.Logger
}

func NewVoteHandler(votes VoteService, dir Directory, votersLimit int, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, dir: dir, votersLimit: votersLimit, logger: logger}
}

type voteRequest struct {
	VotableType string `json:"votable_type" binding:"required,votable_type"`
	VotableID   int    `json:"votable_id" binding:"required,gt=0"`
	Direction   string `json:"direction" binding:"omitempty,vote_direction"`
}

func (r voteRequest) ref() models.VotableRef {
	return models.VotableRef{Type: models.VotableType(r.VotableType), ID: r.VotableID}
}

// bind parses the request and makes sure the votable exists. It writes the
// response itself when it returns false.
func (h *VoteHandler) bind(c *gin.Context) (voteRequest, int, bool) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return voteRequest{}, 0, false
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "votable_type must be post or comment, votable_id is required and direction must be up or down"})
		return voteRequest{}, 0, false
	}

	exists, err := h.dir.VotableExists(c.Request.Context(), req.ref())
	if err != nil {
		respondError(c, h.logger, err)
		return voteRequest{}, 0, false
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Votable not found"})
		return voteRequest{}, 0, false
	}
	return req, userID, true
}

// Vote casts or switches the current user's vote (PROTECTED)
func (h *VoteHandler) Vote(c *gin.Context) {
	req, userID, ok := h.bind(c)
	if !ok {
		return
	}

	dir, _ := models.ParseVoteDirection(req.Direction)
	res, err := h.votes.Cast(c.Request.Context(), req.ref(), userID, dir)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"votable_id": res.Ref.ID,
		"vote_count": res.VoteCount,
		"direction":  res.Direction,
	})
}

// Unvote retracts the current user's vote while the undo window is open (PROTECTED)
func (h *VoteHandler) Unvote(c *gin.Context) {
	req, userID, ok := h.bind(c)
	if !ok {
		return
	}

	res, err := h.votes.Remove(c.Request.Context(), req.ref(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"votable_id": res.Ref.ID,
		"vote_count": res.VoteCount,
	})
}

// Voters lists the most recent voters on a post with their direction
func (h *VoteHandler) Voters(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil || postID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	limit := h.votersLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, h.votersLimit)
	}

	ref := models.VotableRef{Type: models.VotablePost, ID: postID}
	exists, err := h.dir.VotableExists(c.Request.Context(), ref)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	voters, err := h.votes.Voters(c.Request.Context(), ref, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if voters == nil {
		voters = []models.Voter{}
	}
	c.JSON(http.StatusOK, gin.H{"voters": voters})
}
