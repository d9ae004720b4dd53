package models

import (
	"time"

	"gorm.io/gorm"
)

type Post struct {
	ID        int            `gorm:"primaryKey" json:"id"`
	Title     string         `gorm:"not null" json:"title"`
	Body      string         `json:"body"`
	UserID    int            `gorm:"index" json:"user_id"`
	User      User           `gorm:"foreignKey:UserID" json:"user"`
	VoteCount int            `gorm:"not null;default:0" json:"vote_count"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type CreatePostRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body"`
}
