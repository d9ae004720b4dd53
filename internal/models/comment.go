package models

import (
	"time"

	"gorm.io/gorm"
)

type Comment struct {
	ID        int            `gorm:"primaryKey" json:"id"`
	Body      string         `gorm:"not null" json:"body"`
	AuthorID  int            `gorm:"index" json:"author_id"`
	User      User           `gorm:"foreignKey:AuthorID" json:"user"`
	PostID    int            `gorm:"index" json:"post_id"`
	VoteCount int            `gorm:"not null;default:0" json:"vote_count"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Trashed reports whether the comment has been soft deleted.
func (c Comment) Trashed() bool {
	return c.DeletedAt.Valid
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}
