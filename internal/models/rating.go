package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rating is an emoji rating on a vibe: an emoji plus a 1-5 star value and
// an optional short review. A user may rate the same vibe with different
// emojis, but only once per emoji.
type Rating struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	VibeID string `gorm:"not null;index:idx_ratings_vibe;uniqueIndex:idx_ratings_unique" json:"vibe_id"`
	Vibe   Vibe   `gorm:"foreignKey:VibeID" json:"-"`
	UserID string `gorm:"not null;index;uniqueIndex:idx_ratings_unique" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Emoji  string  `gorm:"not null;uniqueIndex:idx_ratings_unique" json:"emoji"`
	Value  float64 `gorm:"not null" json:"value"` // 1-5
	Review string  `gorm:"type:text" json:"review"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Rating) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
