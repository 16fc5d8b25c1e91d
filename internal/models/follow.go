package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Follow is a directed edge: follower follows following
type Follow struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	FollowerID  string `gorm:"not null;index;uniqueIndex:idx_follows_unique" json:"follower_id"`
	Follower    User   `gorm:"foreignKey:FollowerID" json:"-"`
	FollowingID string `gorm:"not null;index;uniqueIndex:idx_follows_unique" json:"following_id"`
	Following   User   `gorm:"foreignKey:FollowingID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
