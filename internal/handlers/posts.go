package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/post-voting/backend/internal/models"
)

type PostHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewPostHandler(db *gorm.DB, logger *slog.Logger) *PostHandler {
	return &PostHandler{db: db, logger: logger}
}

// GetPosts lists posts newest first. vote_count is the stored tally.
func (h *PostHandler) GetPosts(c *gin.Context) {
	posts := []models.Post{}
	if err := h.db.WithContext(c.Request.Context()).Preload("User").Order("created_at desc").Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	var post models.Post
	err := h.db.WithContext(c.Request.Context()).Preload("User").First(&post, c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost creates a new post (PROTECTED - requires authentication)
func (h *PostHandler) CreatePost(c *gin.Context) {
	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	authorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	post := models.Post{
		Title:  input.Title,
		Body:   input.Body,
		UserID: authorID,
	}
	db := h.db.WithContext(c.Request.Context())
	if err := db.Create(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	// Reload with user information
	db.Preload("User").First(&post, post.ID)
	c.JSON(http.StatusCreated, post)
}

// DeletePost soft deletes a post (PROTECTED - requires ownership or staff).
// Its votes stay in place so its counter remains consistent.
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var post models.Post
	if err := db.First(&post, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if post.UserID != userID {
		var actor models.User
		if err := db.Take(&actor, userID).Error; err != nil || !actor.Staff() {
			c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own posts"})
			return
		}
	}

	if err := db.Delete(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}
