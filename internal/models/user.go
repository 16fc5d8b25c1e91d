package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a vibechecc account
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `gorm:"not null" json:"display_name"`
	Bio         string `gorm:"type:text" json:"bio"`
	AvatarURL   string `json:"avatar_url"`

	// Native auth fields
	PasswordHash  *string `gorm:"type:text" json:"-"`
	EmailVerified bool    `gorm:"default:false" json:"email_verified"`

	// Profile data. Interests are stored as a JSON array so the schema
	// works on both postgres and the sqlite test databases.
	Interests []string `gorm:"serializer:json" json:"interests"`

	// Cached social stats, recomputed by the community aggregations
	FollowerCount  int `gorm:"default:0" json:"follower_count"`
	FollowingCount int `gorm:"default:0" json:"following_count"`
	VibeCount      int `gorm:"default:0" json:"vibe_count"`

	// Activity tracking
	LastActiveAt *time.Time `json:"last_active_at"`
	Onboarded    bool       `gorm:"default:false" json:"onboarded"`

	// Operators who may manage experiment configs
	IsAdmin bool `gorm:"default:false" json:"is_admin"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns an id so the schema doesn't depend on a
// postgres-only uuid default
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsNew reports whether the account is young enough to count as a "new
// user" for experiment targeting (first week).
func (u *User) IsNew(now time.Time) bool {
	return now.Sub(u.CreatedAt) < 7*24*time.Hour
}

// PublicProfile is the reduced shape returned for other users
func (u *User) PublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":              u.ID,
		"username":        u.Username,
		"display_name":    u.DisplayName,
		"bio":             u.Bio,
		"avatar_url":      u.AvatarURL,
		"interests":       u.Interests,
		"follower_count":  u.FollowerCount,
		"following_count": u.FollowingCount,
		"vibe_count":      u.VibeCount,
	}
}
