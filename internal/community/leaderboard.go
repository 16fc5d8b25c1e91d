// Package community computes the leaderboard and community statistics
// surfaces: filter/reduce aggregation over users, vibes, ratings and
// follows, with a short-TTL Redis cache in front so the feed pages don't
// hammer the database.
package community

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vibechecc/backend/internal/cache"
	"github.com/vibechecc/backend/internal/logger"
	"github.com/vibechecc/backend/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cacheTTL = 5 * time.Minute

// Window selects the aggregation period for time-scoped boards.
type Window string

const (
	WindowAll  Window = "all"
	WindowWeek Window = "week"
	WindowDay  Window = "day"
)

// Since returns the window's lower time bound; the zero time means
// unbounded.
func (w Window) Since(now time.Time) time.Time {
	switch w {
	case WindowWeek:
		return now.Add(-7 * 24 * time.Hour)
	case WindowDay:
		return now.Add(-24 * time.Hour)
	default:
		return time.Time{}
	}
}

// VibeEntry is one row of the top-vibes board.
type VibeEntry struct {
	VibeID        string  `json:"vibe_id"`
	Title         string  `json:"title"`
	Username      string  `json:"username"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

// UserEntry is one row of a user-ranked board.
type UserEntry struct {
	UserID      string  `json:"user_id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// EmojiEntry is one row of the emoji usage board.
type EmojiEntry struct {
	Emoji        string  `json:"emoji"`
	Count        int     `json:"count"`
	AverageValue float64 `json:"average_value"`
}

// Stats is the community-wide totals panel.
type Stats struct {
	Users      int64 `json:"users"`
	Vibes      int64 `json:"vibes"`
	Ratings    int64 `json:"ratings"`
	Follows    int64 `json:"follows"`
	RatingsDay int64 `json:"ratings_today"`
}

// Service runs the aggregation queries. The Redis client may be nil, in
// which case every call goes straight to the database.
type Service struct {
	db    *gorm.DB
	redis *cache.RedisClient
}

func NewService(db *gorm.DB, redis *cache.RedisClient) *Service {
	return &Service{db: db, redis: redis}
}

// TopVibes returns the best-rated public vibes in the window, requiring a
// minimum number of ratings so a single 5-star vote doesn't top the board.
func (s *Service) TopVibes(ctx context.Context, window Window, limit int) ([]VibeEntry, error) {
	key := fmt.Sprintf("leaderboard:vibes:%s:%d", window, limit)
	var entries []VibeEntry
	if s.cached(ctx, key, &entries) {
		return entries, nil
	}

	const minRatings = 3
	q := s.db.WithContext(ctx).Table("vibes").
		Select("vibes.id as vibe_id, vibes.title, users.username, vibes.average_rating, vibes.rating_count").
		Joins("JOIN users ON users.id = vibes.user_id").
		Where("vibes.is_public = ? AND vibes.rating_count >= ? AND vibes.deleted_at IS NULL", true, minRatings)
	if since := window.Since(time.Now().UTC()); !since.IsZero() {
		q = q.Where("vibes.created_at >= ?", since)
	}
	err := q.Order("vibes.average_rating DESC, vibes.rating_count DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("top vibes query: %w", err)
	}

	s.store(ctx, key, entries)
	return entries, nil
}

// MostFollowed ranks users by follower count.
func (s *Service) MostFollowed(ctx context.Context, limit int) ([]UserEntry, error) {
	key := fmt.Sprintf("leaderboard:followed:%d", limit)
	var entries []UserEntry
	if s.cached(ctx, key, &entries) {
		return entries, nil
	}

	err := s.db.WithContext(ctx).Table("users").
		Select("id as user_id, username, display_name, follower_count as score").
		Where("deleted_at IS NULL").
		Order("follower_count DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("most followed query: %w", err)
	}

	s.store(ctx, key, entries)
	return entries, nil
}

// TopRaters ranks users by how many ratings they left in the window.
func (s *Service) TopRaters(ctx context.Context, window Window, limit int) ([]UserEntry, error) {
	key := fmt.Sprintf("leaderboard:raters:%s:%d", window, limit)
	var entries []UserEntry
	if s.cached(ctx, key, &entries) {
		return entries, nil
	}

	q := s.db.WithContext(ctx).Table("ratings").
		Select("users.id as user_id, users.username, users.display_name, COUNT(ratings.id) as score").
		Joins("JOIN users ON users.id = ratings.user_id").
		Where("ratings.deleted_at IS NULL")
	if since := window.Since(time.Now().UTC()); !since.IsZero() {
		q = q.Where("ratings.created_at >= ?", since)
	}
	err := q.Group("users.id, users.username, users.display_name").
		Order("score DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("top raters query: %w", err)
	}

	s.store(ctx, key, entries)
	return entries, nil
}

// TopEmojis ranks the rating emojis by usage in the window.
func (s *Service) TopEmojis(ctx context.Context, window Window, limit int) ([]EmojiEntry, error) {
	key := fmt.Sprintf("leaderboard:emojis:%s:%d", window, limit)
	var entries []EmojiEntry
	if s.cached(ctx, key, &entries) {
		return entries, nil
	}

	q := s.db.WithContext(ctx).Table("ratings").
		Select("emoji, COUNT(id) as count, AVG(value) as average_value").
		Where("deleted_at IS NULL")
	if since := window.Since(time.Now().UTC()); !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	err := q.Group("emoji").
		Order("count DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("top emojis query: %w", err)
	}

	s.store(ctx, key, entries)
	return entries, nil
}

// CommunityStats returns the totals panel.
func (s *Service) CommunityStats(ctx context.Context) (*Stats, error) {
	key := "leaderboard:stats"
	var stats Stats
	if s.cached(ctx, key, &stats) {
		return &stats, nil
	}

	db := s.db.WithContext(ctx)
	db.Table("users").Where("deleted_at IS NULL").Count(&stats.Users)
	db.Table("vibes").Where("deleted_at IS NULL").Count(&stats.Vibes)
	db.Table("ratings").Where("deleted_at IS NULL").Count(&stats.Ratings)
	db.Table("follows").Count(&stats.Follows)
	db.Table("ratings").
		Where("deleted_at IS NULL AND created_at >= ?", time.Now().UTC().Add(-24*time.Hour)).
		Count(&stats.RatingsDay)

	s.store(ctx, key, stats)
	return &stats, nil
}

// cached tries the Redis cache; returns true on a decodable hit.
func (s *Service) cached(ctx context.Context, key string, out interface{}) bool {
	if s.redis == nil {
		return false
	}
	raw, err := s.redis.Get(ctx, key)
	if err != nil {
		metrics.Get().CacheMissesTotal.WithLabelValues("leaderboard").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		metrics.Get().CacheMissesTotal.WithLabelValues("leaderboard").Inc()
		return false
	}
	metrics.Get().CacheHitsTotal.WithLabelValues("leaderboard").Inc()
	return true
}

// store writes a cache entry, best-effort.
func (s *Service) store(ctx context.Context, key string, val interface{}) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := s.redis.SetEx(ctx, key, raw, cacheTTL); err != nil && logger.Log != nil {
		logger.Warn("failed to cache leaderboard entry", zap.String("key", key), zap.Error(err))
	}
}
