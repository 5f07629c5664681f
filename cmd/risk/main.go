package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/salonflow/salonflow-backend/internal/blocking"
	"github.com/salonflow/salonflow-backend/internal/patterns"
	"github.com/salonflow/salonflow-backend/internal/points"
	"github.com/salonflow/salonflow-backend/pkg/common"
	"github.com/salonflow/salonflow-backend/pkg/config"
	"github.com/salonflow/salonflow-backend/pkg/database"
	"github.com/salonflow/salonflow-backend/pkg/logger"
	"github.com/salonflow/salonflow-backend/pkg/middleware"
	"github.com/salonflow/salonflow-backend/pkg/redis"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load("risk")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Connect to PostgreSQL
	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to PostgreSQL")

	// Redis is optional: the profile cache degrades to memory-only without it
	var profileRedis *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, profile cache runs memory-only", zap.Error(err))
		} else {
			defer redisClient.Close()
			profileRedis = redisClient
			logger.Info("Connected to Redis")
		}
	}

	// Pattern analysis
	patternsRepo := patterns.NewRepository(db)
	profileCache := patterns.NewProfileCache(cfg.Risk.ProfileCacheTTL, profileRedis, nil)
	profileBuilder := patterns.NewProfileBuilder(patternsRepo, profileCache, cfg.Risk.ProfileHistory, nil)
	anomalyScorer := patterns.NewAnomalyScorer(patternsRepo, nil)
	patternsHandler := patterns.NewHandler(profileBuilder, anomalyScorer)

	// Point validation
	pointsRepo := points.NewRepository(db)
	pointsService := points.NewService(pointsRepo, cfg.Points, nil)
	pointsHandler := points.NewHandler(pointsService)

	// Blocking decisions
	blockingRepo := blocking.NewRepository(db)
	blockingEngine := blocking.NewEngine(blockingRepo, cfg.Risk.RuleCacheTTL)
	blockingHandler := blocking.NewHandler(blockingEngine)

	// Set up Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(cfg.Server.ServiceName))
	router.Use(middleware.Recovery())

	// Health check and metrics
	router.GET("/healthz", common.HealthCheckWithDeps(cfg.Server.ServiceName, "1.0.0", map[string]func() error{
		"postgres": func() error {
			return db.Ping(context.Background())
		},
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		blockingHandler.RegisterRoutes(api.Group("/blocking"))
		patternsHandler.RegisterRoutes(api.Group("/patterns"))
		pointsHandler.RegisterRoutes(api.Group("/points"))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	logger.Info("Risk service starting", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
