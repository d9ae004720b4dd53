package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/post-voting/backend/internal/config"
	"github.com/emilythestrangee/post-voting/backend/internal/guardian"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
)

type CommentHandler struct {
	db       *gorm.DB
	settings config.Voting
}

func NewCommentHandler(db *gorm.DB, settings config.Voting) *CommentHandler {
	return &CommentHandler{db: db, settings: settings}
}

// guardianFor builds a guardian for the requesting user, anonymous when the
// request carries no identity.
func (h *CommentHandler) guardianFor(c *gin.Context) *guardian.Guardian {
	userID, ok := extractUserID(c)
	if !ok {
		return guardian.New(nil, h.settings)
	}
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).Take(&user, userID).Error; err != nil {
		return guardian.New(nil, h.settings)
	}
	return guardian.New(&user, h.settings)
}

func author(comment *models.Comment) *models.User {
	if comment.User.ID == 0 {
		return nil
	}
	return &comment.User
}

// GetComments returns the live comments for a post with what the viewer may do to each
func (h *CommentHandler) GetComments(c *gin.Context) {
	var comments []models.Comment
	err := h.db.WithContext(c.Request.Context()).
		Where("post_id = ?", c.Param("id")).
		Preload("User").
		Order("created_at desc").
		Find(&comments).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	g := h.guardianFor(c)
	responses := make([]gin.H, 0, len(comments))
	for i := range comments {
		comment := &comments[i]
		responses = append(responses, gin.H{
			"id":         comment.ID,
			"body":       comment.Body,
			"author_id":  comment.AuthorID,
			"post_id":    comment.PostID,
			"user":       comment.User,
			"vote_count": comment.VoteCount,
			"can_edit":   g.CanEditComment(comment),
			"can_delete": g.CanDeleteComment(comment),
			"can_flag":   g.CanFlagComment(comment, author(comment)),
			"created_at": comment.CreatedAt,
			"updated_at": comment.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, responses)
}

// CreateComment creates a new comment on a post
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	db := h.db.WithContext(c.Request.Context())

	// Verify post exists
	var post models.Post
	if err := db.First(&post, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	comment := models.Comment{
		Body:     input.Body,
		PostID:   post.ID,
		AuthorID: authorID,
	}
	if err := db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	db.Preload("User").First(&comment, comment.ID)
	c.JSON(http.StatusCreated, comment)
}

// UpdateComment edits a comment body (PROTECTED - author or staff)
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var comment models.Comment
	if err := db.First(&comment, c.Param("commentId")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}

	if !h.guardianFor(c).CanEditComment(&comment) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot edit this comment"})
		return
	}

	if err := db.Model(&comment).Update("body", input.Body).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update comment"})
		return
	}

	db.Preload("User").First(&comment, comment.ID)
	c.JSON(http.StatusOK, comment)
}

// DeleteComment soft deletes a comment (PROTECTED - author or staff)
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	var comment models.Comment
	if err := db.First(&comment, c.Param("commentId")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}

	if !h.guardianFor(c).CanDeleteComment(&comment) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot delete this comment"})
		return
	}

	if err := db.Delete(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
