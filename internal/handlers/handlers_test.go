package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/vibechecc/backend/internal/analytics"
	"github.com/vibechecc/backend/internal/auth"
	"github.com/vibechecc/backend/internal/community"
	"github.com/vibechecc/backend/internal/database"
	"github.com/vibechecc/backend/internal/experiments"
	"github.com/vibechecc/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var handlersDBSeq atomic.Int64

// HandlersTestSuite spins up the router against an in-memory sqlite
// database with a header-based fake auth middleware.
type HandlersTestSuite struct {
	suite.Suite
	router *gin.Engine
	sink   *analytics.MemorySink
	exps   *experiments.Service
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (s *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", handlersDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(&models.User{}, &models.Vibe{}, &models.Rating{}, &models.Follow{}))
	database.DB = db

	s.sink = analytics.NewMemorySink()
	s.exps = experiments.NewService(experiments.NewMemoryPersistence(), s.sink, nil)

	h := New(
		auth.NewService([]byte("test-secret")),
		s.exps,
		community.NewService(db, nil),
		nil,
	)

	s.router = gin.New()
	h.RegisterRoutes(s.router, testAuthMiddleware())
}

func (s *HandlersTestSuite) TearDownTest() {
	if database.DB != nil {
		sqlDB, _ := database.DB.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		database.DB = nil
	}
}

// testAuthMiddleware trusts an X-User-ID header instead of verifying JWTs.
func testAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-User-ID")
		if id == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}
		var user models.User
		if err := database.DB.Where("id = ?", id).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			c.Abort()
			return
		}
		c.Set("user_id", user.ID)
		c.Set("user", &user)
		c.Next()
	}
}

func (s *HandlersTestSuite) createUser(username string) *models.User {
	u := &models.User{
		Email:       username + "@vibechecc.io",
		Username:    username,
		DisplayName: username,
	}
	s.Require().NoError(database.DB.Create(u).Error)
	return u
}

func (s *HandlersTestSuite) request(method, path string, body interface{}, userID string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) decode(w *httptest.ResponseRecorder, out interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out))
}

// --- auth ---

func (s *HandlersTestSuite) TestRegisterAndLogin() {
	w := s.request(http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":        "alice@vibechecc.io",
		"username":     "alice",
		"password":     "hunter2hunter2",
		"display_name": "Alice",
	}, "")
	s.Equal(http.StatusCreated, w.Code)

	var created auth.AuthResponse
	s.decode(w, &created)
	s.NotEmpty(created.Token)
	s.Equal("alice", created.User.Username)

	w = s.request(http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "alice@vibechecc.io",
		"password": "hunter2hunter2",
	}, "")
	s.Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "alice@vibechecc.io",
		"password": "wrong-password",
	}, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersTestSuite) TestRegisterDuplicateEmail() {
	s.createUser("alice")
	w := s.request(http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":        "alice@vibechecc.io",
		"username":     "alice2",
		"password":     "hunter2hunter2",
		"display_name": "Alice",
	}, "")
	s.Equal(http.StatusConflict, w.Code)
}

// --- vibes ---

func (s *HandlersTestSuite) TestCreateAndListVibes() {
	alice := s.createUser("alice")

	w := s.request(http.MethodPost, "/api/v1/vibes", gin.H{
		"title": "golden hour on the fire escape",
		"tags":  []string{"sunset", "city"},
	}, alice.ID)
	s.Equal(http.StatusCreated, w.Code)

	var vibe models.Vibe
	s.decode(w, &vibe)
	s.Equal(alice.ID, vibe.UserID)
	s.True(vibe.IsPublic)

	var stored models.User
	s.Require().NoError(database.DB.First(&stored, "id = ?", alice.ID).Error)
	s.Equal(1, stored.VibeCount)

	w = s.request(http.MethodGet, "/api/v1/vibes", nil, "")
	s.Equal(http.StatusOK, w.Code)
	var feed struct {
		Vibes []models.Vibe `json:"vibes"`
	}
	s.decode(w, &feed)
	s.Len(feed.Vibes, 1)
	s.Equal("golden hour on the fire escape", feed.Vibes[0].Title)
}

func (s *HandlersTestSuite) TestPrivateVibeHiddenFromOthers() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	private := false
	w := s.request(http.MethodPost, "/api/v1/vibes", gin.H{
		"title":     "secret diary vibe",
		"is_public": private,
	}, alice.ID)
	s.Equal(http.StatusCreated, w.Code)
	var vibe models.Vibe
	s.decode(w, &vibe)

	w = s.request(http.MethodGet, "/api/v1/vibes/"+vibe.ID, nil, bob.ID)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.request(http.MethodGet, "/api/v1/vibes", nil, "")
	var feed struct {
		Vibes []models.Vibe `json:"vibes"`
	}
	s.decode(w, &feed)
	s.Empty(feed.Vibes)
}

func (s *HandlersTestSuite) TestDeleteVibeOwnerOnly() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	w := s.request(http.MethodPost, "/api/v1/vibes", gin.H{"title": "ephemeral"}, alice.ID)
	var vibe models.Vibe
	s.decode(w, &vibe)

	w = s.request(http.MethodDelete, "/api/v1/vibes/"+vibe.ID, nil, bob.ID)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodDelete, "/api/v1/vibes/"+vibe.ID, nil, alice.ID)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.request(http.MethodGet, "/api/v1/vibes/"+vibe.ID, nil, alice.ID)
	s.Equal(http.StatusNotFound, w.Code)
}

// --- ratings ---

func (s *HandlersTestSuite) seedVibe(owner *models.User, title string) *models.Vibe {
	v := &models.Vibe{UserID: owner.ID, Title: title, IsPublic: true}
	s.Require().NoError(database.DB.Create(v).Error)
	return v
}

func (s *HandlersTestSuite) TestRateVibeUpdatesAggregates() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	vibe := s.seedVibe(alice, "sunset")

	w := s.request(http.MethodPost, "/api/v1/vibes/"+vibe.ID+"/ratings", gin.H{
		"emoji": "🔥", "value": 4, "review": "so warm",
	}, bob.ID)
	s.Equal(http.StatusCreated, w.Code)

	var stored models.Vibe
	s.Require().NoError(database.DB.First(&stored, "id = ?", vibe.ID).Error)
	s.Equal(1, stored.RatingCount)
	s.InDelta(4.0, stored.AverageRating, 1e-9)

	// same emoji again: update, not a second rating
	w = s.request(http.MethodPost, "/api/v1/vibes/"+vibe.ID+"/ratings", gin.H{
		"emoji": "🔥", "value": 2,
	}, bob.ID)
	s.Equal(http.StatusOK, w.Code)

	s.Require().NoError(database.DB.First(&stored, "id = ?", vibe.ID).Error)
	s.Equal(1, stored.RatingCount)
	s.InDelta(2.0, stored.AverageRating, 1e-9)

	// a different emoji stacks
	w = s.request(http.MethodPost, "/api/v1/vibes/"+vibe.ID+"/ratings", gin.H{
		"emoji": "💖", "value": 5,
	}, bob.ID)
	s.Equal(http.StatusCreated, w.Code)

	s.Require().NoError(database.DB.First(&stored, "id = ?", vibe.ID).Error)
	s.Equal(2, stored.RatingCount)
	s.InDelta(3.5, stored.AverageRating, 1e-9)
}

func (s *HandlersTestSuite) TestCannotRateOwnVibe() {
	alice := s.createUser("alice")
	vibe := s.seedVibe(alice, "sunset")

	w := s.request(http.MethodPost, "/api/v1/vibes/"+vibe.ID+"/ratings", gin.H{
		"emoji": "🔥", "value": 5,
	}, alice.ID)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *HandlersTestSuite) TestRatingValueBounds() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	vibe := s.seedVibe(alice, "sunset")

	w := s.request(http.MethodPost, "/api/v1/vibes/"+vibe.ID+"/ratings", gin.H{
		"emoji": "🔥", "value": 6,
	}, bob.ID)
	s.Equal(http.StatusBadRequest, w.Code)
}

// --- follows ---

func (s *HandlersTestSuite) TestFollowAndUnfollow() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	w := s.request(http.MethodPost, "/api/v1/users/alice/follow", nil, bob.ID)
	s.Equal(http.StatusCreated, w.Code)

	// idempotent
	w = s.request(http.MethodPost, "/api/v1/users/alice/follow", nil, bob.ID)
	s.Equal(http.StatusOK, w.Code)

	var stored models.User
	s.Require().NoError(database.DB.First(&stored, "id = ?", alice.ID).Error)
	s.Equal(1, stored.FollowerCount)
	s.Require().NoError(database.DB.First(&stored, "id = ?", bob.ID).Error)
	s.Equal(1, stored.FollowingCount)

	w = s.request(http.MethodGet, "/api/v1/users/alice/followers", nil, bob.ID)
	s.Equal(http.StatusOK, w.Code)
	var resp struct {
		Users []map[string]interface{} `json:"users"`
	}
	s.decode(w, &resp)
	s.Len(resp.Users, 1)
	s.Equal("bob", resp.Users[0]["username"])

	w = s.request(http.MethodDelete, "/api/v1/users/alice/follow", nil, bob.ID)
	s.Equal(http.StatusNoContent, w.Code)

	s.Require().NoError(database.DB.First(&stored, "id = ?", alice.ID).Error)
	s.Equal(0, stored.FollowerCount)
}

func (s *HandlersTestSuite) TestCannotFollowSelf() {
	alice := s.createUser("alice")
	w := s.request(http.MethodPost, "/api/v1/users/alice/follow", nil, alice.ID)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

// --- profile ---

func (s *HandlersTestSuite) TestUpdateMe() {
	alice := s.createUser("alice")

	w := s.request(http.MethodPatch, "/api/v1/me", gin.H{
		"bio":       "chasing good light",
		"interests": []string{"sunsets", "coffee"},
	}, alice.ID)
	s.Equal(http.StatusOK, w.Code)

	var stored models.User
	s.Require().NoError(database.DB.First(&stored, "id = ?", alice.ID).Error)
	s.Equal("chasing good light", stored.Bio)
	s.Equal([]string{"sunsets", "coffee"}, stored.Interests)
	// untouched fields stay
	s.Equal("alice", stored.DisplayName)
}

func (s *HandlersTestSuite) TestGetUserPublicProfileOmitsEmail() {
	s.createUser("alice")
	w := s.request(http.MethodGet, "/api/v1/users/alice", nil, "")
	s.Equal(http.StatusOK, w.Code)

	var profile map[string]interface{}
	s.decode(w, &profile)
	s.Equal("alice", profile["username"])
	s.NotContains(profile, "email")
}

// --- community ---

func (s *HandlersTestSuite) TestCommunityStatsEndpoint() {
	alice := s.createUser("alice")
	s.seedVibe(alice, "sunset")

	w := s.request(http.MethodGet, "/api/v1/community/stats", nil, "")
	s.Equal(http.StatusOK, w.Code)

	var stats community.Stats
	s.decode(w, &stats)
	s.Equal(int64(1), stats.Users)
	s.Equal(int64(1), stats.Vibes)
}
