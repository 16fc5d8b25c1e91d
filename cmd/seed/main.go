// Seeds a development database with fake users, vibes, ratings and
// follows so the feed and leaderboards have something to show.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/vibechecc/backend/internal/database"
	"github.com/vibechecc/backend/internal/logger"
	"github.com/vibechecc/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ratingEmojis = []string{"🔥", "💖", "😂", "😭", "🌊", "✨", "🫠", "💀"}

var vibeTags = []string{
	"sunset", "coffee", "rain", "latenight", "gym", "cozy",
	"roadtrip", "study", "heartbreak", "victory", "monday", "beach",
}

func main() {
	users := flag.Int("users", 50, "number of users to create")
	vibesPer := flag.Int("vibes", 4, "max vibes per user")
	seed := flag.Int64("seed", 0, "rng seed, 0 means random")
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Initialize("info", "seed.log"); err != nil {
		panic(err)
	}
	defer logger.Close()
	log := logger.Log

	seedVal := *seed
	if seedVal == 0 {
		seedVal = time.Now().UnixNano()
	}
	gofakeit.Seed(seedVal)
	rng := rand.New(rand.NewSource(seedVal))

	if err := database.Initialize(); err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	start := time.Now()
	created, err := run(database.DB, rng, *users, *vibesPer)
	if err != nil {
		log.Fatal("seeding failed", zap.Error(err))
	}
	log.Info("seeding complete",
		zap.Int("users", created.users),
		zap.Int("vibes", created.vibes),
		zap.Int("ratings", created.ratings),
		zap.Int("follows", created.follows),
		zap.Duration("took", time.Since(start)),
	)
}

type counts struct {
	users, vibes, ratings, follows int
}

func run(db *gorm.DB, rng *rand.Rand, userCount, vibesPer int) (*counts, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	password := string(hashed)

	var c counts
	var allUsers []*models.User
	var allVibes []*models.Vibe

	for i := 0; i < userCount; i++ {
		username := fmt.Sprintf("%s%d", gofakeit.Username(), i)
		user := &models.User{
			Email:        fmt.Sprintf("%d.%s", i, gofakeit.Email()),
			Username:     username,
			DisplayName:  gofakeit.Name(),
			Bio:          gofakeit.Quote(),
			PasswordHash: &password,
			Interests:    pick(rng, vibeTags, 2+rng.Intn(3)),
			Onboarded:    true,
		}
		if err := db.Create(user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		allUsers = append(allUsers, user)
		c.users++

		for v := 0; v < 1+rng.Intn(vibesPer); v++ {
			vibe := &models.Vibe{
				UserID:      user.ID,
				Title:       gofakeit.Sentence(4),
				Description: gofakeit.Paragraph(1, 2, 12, " "),
				Tags:        pick(rng, vibeTags, 1+rng.Intn(3)),
				IsPublic:    rng.Float64() > 0.1,
			}
			if err := db.Create(vibe).Error; err != nil {
				return nil, fmt.Errorf("create vibe: %w", err)
			}
			allVibes = append(allVibes, vibe)
			c.vibes++
		}
	}

	// ratings: each user rates a handful of other people's vibes
	for _, user := range allUsers {
		for n := 0; n < 3+rng.Intn(5); n++ {
			vibe := allVibes[rng.Intn(len(allVibes))]
			if vibe.UserID == user.ID || !vibe.IsPublic {
				continue
			}
			value := float64(1 + rng.Intn(5))
			rating := &models.Rating{
				VibeID: vibe.ID,
				UserID: user.ID,
				Emoji:  ratingEmojis[rng.Intn(len(ratingEmojis))],
				Value:  value,
			}
			if rng.Float64() < 0.3 {
				rating.Review = gofakeit.Sentence(8)
			}
			// the unique (vibe, user, emoji) index rejects repeats; skip them
			if err := db.Create(rating).Error; err != nil {
				continue
			}
			vibe.ApplyRating(value)
			if err := db.Model(&models.Vibe{}).Where("id = ?", vibe.ID).
				UpdateColumns(map[string]interface{}{
					"rating_count":   vibe.RatingCount,
					"rating_sum":     vibe.RatingSum,
					"average_rating": vibe.AverageRating,
				}).Error; err != nil {
				return nil, fmt.Errorf("update aggregates: %w", err)
			}
			c.ratings++
		}
	}

	// follows: sparse random graph
	for _, follower := range allUsers {
		for n := 0; n < rng.Intn(6); n++ {
			target := allUsers[rng.Intn(len(allUsers))]
			if target.ID == follower.ID {
				continue
			}
			follow := &models.Follow{FollowerID: follower.ID, FollowingID: target.ID}
			if err := db.Create(follow).Error; err != nil {
				continue
			}
			db.Model(&models.User{}).Where("id = ?", target.ID).
				UpdateColumn("follower_count", gorm.Expr("follower_count + 1"))
			db.Model(&models.User{}).Where("id = ?", follower.ID).
				UpdateColumn("following_count", gorm.Expr("following_count + 1"))
			c.follows++
		}
	}

	// vibe counts in one pass
	if err := db.Exec(`UPDATE users SET vibe_count = (SELECT COUNT(*) FROM vibes WHERE vibes.user_id = users.id AND vibes.deleted_at IS NULL)`).Error; err != nil {
		return nil, fmt.Errorf("update vibe counts: %w", err)
	}

	return &c, nil
}

func pick(rng *rand.Rand, pool []string, n int) []string {
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(out) < n && len(seen) < len(pool) {
		s := pool[rng.Intn(len(pool))]
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
