package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vibe represents a shared vibe post
type Vibe struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Title       string   `gorm:"not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	ImageURL    string   `json:"image_url"`
	Tags        []string `gorm:"serializer:json" json:"tags"`

	// Rating aggregates, maintained on every rating write so feed and
	// leaderboard queries don't have to join ratings
	RatingCount   int     `gorm:"default:0" json:"rating_count"`
	RatingSum     float64 `gorm:"default:0" json:"-"`
	AverageRating float64 `gorm:"default:0" json:"average_rating"`

	IsPublic bool `gorm:"default:true" json:"is_public"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (v *Vibe) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// ApplyRating folds a new rating value into the cached aggregates
func (v *Vibe) ApplyRating(value float64) {
	v.RatingSum += value
	v.RatingCount++
	v.AverageRating = v.RatingSum / float64(v.RatingCount)
}
