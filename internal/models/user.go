package models

import "time"

type User struct {
	ID         int    `gorm:"primaryKey" json:"id"`
	Username   string `gorm:"unique;not null" json:"username"`
	Email      string `gorm:"unique;not null" json:"-"`
	Password   string `gorm:"not null" json:"-"`
	TrustLevel int    `gorm:"not null;default:0" json:"trust_level"`
	Admin      bool   `gorm:"not null;default:false" json:"admin"`
	Moderator  bool   `gorm:"not null;default:false" json:"moderator"`
	Silenced   bool   `gorm:"not null;default:false" json:"silenced"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Staff is true for admins and moderators.
func (u User) Staff() bool {
	return u.Admin || u.Moderator
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}
