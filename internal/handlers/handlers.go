// Package handlers is the HTTP face of vibechecc: auth, vibes, emoji
// ratings, follows, community leaderboards and the experiment endpoints.
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vibechecc/backend/internal/auth"
	"github.com/vibechecc/backend/internal/community"
	"github.com/vibechecc/backend/internal/experiments"
	"github.com/vibechecc/backend/internal/middleware"
	"github.com/vibechecc/backend/internal/models"
	"go.uber.org/zap"
)

// Handlers bundles the services the routes need.
type Handlers struct {
	auth        *auth.Service
	experiments *experiments.Service
	community   *community.Service
	log         *zap.Logger
}

func New(authSvc *auth.Service, expSvc *experiments.Service, commSvc *community.Service, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		auth:        authSvc,
		experiments: expSvc,
		community:   commSvc,
		log:         log,
	}
}

// RegisterRoutes wires every endpoint onto the router. authMW guards the
// routes that need a logged-in user; it is injected so tests can swap the
// JWT check for a header-based fake.
func (h *Handlers) RegisterRoutes(r *gin.Engine, authMW gin.HandlerFunc) {
	api := r.Group("/api/v1")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	api.GET("/users/:username", h.GetUser)
	api.GET("/vibes", h.ListVibes)
	api.GET("/vibes/:id", h.GetVibe)
	api.GET("/vibes/:id/ratings", h.ListRatings)

	comm := api.Group("/community")
	comm.GET("/vibes", h.TopVibes)
	comm.GET("/followed", h.MostFollowed)
	comm.GET("/raters", h.TopRaters)
	comm.GET("/emojis", h.TopEmojis)
	comm.GET("/stats", h.CommunityStats)

	authed := api.Group("")
	authed.Use(authMW)
	authed.GET("/me", h.GetMe)
	authed.PATCH("/me", h.UpdateMe)
	authed.POST("/vibes", h.CreateVibe)
	authed.DELETE("/vibes/:id", h.DeleteVibe)
	authed.POST("/vibes/:id/ratings", h.RateVibe)
	authed.POST("/users/:username/follow", h.FollowUser)
	authed.DELETE("/users/:username/follow", h.UnfollowUser)
	authed.GET("/users/:username/followers", h.ListFollowers)
	authed.GET("/users/:username/following", h.ListFollowing)

	exp := authed.Group("/experiments")
	exp.GET("/active", h.ActiveExperiments)
	exp.GET("/:id/variant", h.ExperimentVariant)
	exp.POST("/:id/convert", h.ExperimentConvert)

	// Config management and results can move variants for everyone, so
	// they stay behind the admin flag.
	admin := exp.Group("")
	admin.Use(middleware.RequireAdmin())
	admin.POST("", h.ConfigureExperiment)
	admin.GET("", h.ListExperiments)
	admin.POST("/:id/results", h.ExperimentResults)
}

// currentUser pulls the authenticated user off the request context.
func currentUser(c *gin.Context) (*models.User, bool) {
	val, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	user, ok := val.(*models.User)
	return user, ok
}
