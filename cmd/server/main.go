package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vibechecc/backend/internal/analytics"
	"github.com/vibechecc/backend/internal/auth"
	"github.com/vibechecc/backend/internal/cache"
	"github.com/vibechecc/backend/internal/community"
	"github.com/vibechecc/backend/internal/config"
	"github.com/vibechecc/backend/internal/database"
	"github.com/vibechecc/backend/internal/experiments"
	"github.com/vibechecc/backend/internal/handlers"
	"github.com/vibechecc/backend/internal/logger"
	"github.com/vibechecc/backend/internal/middleware"
	"github.com/vibechecc/backend/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		panic(err)
	}
	defer logger.Close()
	log := logger.Log

	if err := database.Initialize(); err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  "vibechecc-backend",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TracingEnabled,
		SamplingRate: cfg.TraceSampleRate,
	})
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	// Assignments live in redis when it's reachable, otherwise in a local
	// file so a dev setup without redis still gets stable bucketing.
	var persist experiments.PersistenceStore
	redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err != nil {
		log.Warn("redis unavailable, persisting assignments to file",
			zap.String("file", cfg.AssignmentsFile),
			zap.Error(err),
		)
		redisClient = nil
		persist = experiments.NewFilePersistence(cfg.AssignmentsFile)
	} else {
		defer redisClient.Close()
		persist = experiments.NewRedisPersistence(redisClient, "")
	}

	var sink analytics.Sink = analytics.NopSink{}
	if cfg.AnalyticsAPIKey != "" {
		ph := analytics.NewPostHogSink(analytics.PostHogConfig{
			APIKey:   cfg.AnalyticsAPIKey,
			Endpoint: cfg.AnalyticsEndpoint,
		}, log)
		defer ph.Close()
		sink = ph
	}

	expSvc := experiments.NewService(persist, sink, log)
	configureExperiments(expSvc, log)

	authSvc := auth.NewService([]byte(cfg.JWTSecret))
	commSvc := community.NewService(database.DB, redisClient)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://vibechecc.io"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Page", "X-Session-ID", "X-Platform", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if tp != nil {
		r.Use(otelgin.Middleware("vibechecc-backend"))
	}

	r.GET("/health", func(c *gin.Context) {
		if err := database.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.New(authSvc, expSvc, commSvc, log)
	h.RegisterRoutes(r, authSvc.Middleware())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}

// configureExperiments registers the experiments currently in flight.
// Configs live in code for now; the admin endpoint can replace them at
// runtime.
func configureExperiments(svc *experiments.Service, log *zap.Logger) {
	newUsers := true
	exps := []experiments.Experiment{
		{
			ID:          "hero_tagline",
			Name:        "Landing hero tagline",
			Description: "Which tagline gets new visitors to sign up",
			Status:      experiments.StatusRunning,
			Variants: []experiments.Variant{
				{ID: "control", Name: "Control", Weight: 0.2, Control: true,
					Config: map[string]string{"tagline": "share your vibe"}},
				{ID: "emotional", Name: "Emotional", Weight: 0.2,
					Config: map[string]string{"tagline": "how are you really feeling?"}},
				{ID: "social", Name: "Social", Weight: 0.2,
					Config: map[string]string{"tagline": "see what your friends are feeling"}},
				{ID: "minimal", Name: "Minimal", Weight: 0.2,
					Config: map[string]string{"tagline": "vibes."}},
				{ID: "playful", Name: "Playful", Weight: 0.2,
					Config: map[string]string{"tagline": "rate everything with emoji"}},
			},
			Metrics: []experiments.Metric{
				{ID: "signup", Name: "Signup", Kind: experiments.MetricConversion,
					EventName: "signed_up", Goal: experiments.GoalIncrease, Primary: true},
			},
			TrafficAllocation: 1.0,
		},
		{
			ID:          "onboarding_interests",
			Name:        "Interest picker during onboarding",
			Description: "Does picking interests up front drive first ratings",
			Status:      experiments.StatusRunning,
			Targeting:   &experiments.Targeting{NewUsers: &newUsers},
			Variants: []experiments.Variant{
				{ID: "control", Name: "Skip interests", Weight: 0.5, Control: true},
				{ID: "picker", Name: "Show picker", Weight: 0.5},
			},
			Metrics: []experiments.Metric{
				{ID: "first_rating", Name: "First rating", Kind: experiments.MetricEngagement,
					EventName: "vibe_rated", Goal: experiments.GoalIncrease, Primary: true},
			},
			TrafficAllocation: 0.5,
		},
	}

	for _, e := range exps {
		if err := svc.Configure(e); err != nil {
			log.Fatal("bad experiment config", zap.String("experiment_id", e.ID), zap.Error(err))
		}
	}
}
