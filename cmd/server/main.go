package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cinematch/backend/internal/analytics"
	"github.com/cinematch/backend/internal/cache"
	"github.com/cinematch/backend/internal/database"
	"github.com/cinematch/backend/internal/handlers"
	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/metrics"
	"github.com/cinematch/backend/internal/middleware"
	"github.com/cinematch/backend/internal/recommender"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== CineMatch server starting ===")

	// Initialize database
	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	metrics.Initialize()

	// Redis is optional: without it the popularity shelf skips its cache
	var popCache *cache.PopularityCache
	redisClient, err := cache.NewRedisClient(
		os.Getenv("REDIS_HOST"),
		os.Getenv("REDIS_PORT"),
		os.Getenv("REDIS_PASSWORD"),
	)
	if err != nil {
		logger.WarnWithFields("Redis unavailable, popularity cache disabled", err)
	} else {
		popCache = cache.NewPopularityCache(redisClient)
		defer redisClient.Close()
	}

	// Recommendation pipeline
	cfg := recommender.DefaultConfig()
	store := recommender.NewStore(database.DB)
	scheduler := recommender.NewScheduler(store, cfg)
	if err := scheduler.Bootstrap(); err != nil {
		log.Fatalf("Failed to bootstrap recommendation models: %v", err)
	}
	svc := recommender.NewService(store, scheduler, popCache, cfg)
	tracker := analytics.NewTracker(database.DB)

	h := handlers.NewHandlers(svc, tracker)

	// Setup Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"} // Configure properly for production
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if err := database.Health(); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = err.Error()
		}
		c.JSON(status, gin.H{
			"status":    dbStatus,
			"timestamp": time.Now().UTC(),
			"service":   "cinematch-backend",
		})
	})

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api/v1")
	{
		users := api.Group("/users")
		{
			users.POST("", h.CreateUser)
			users.GET("/:id", h.GetUser)

			users.GET("/:id/recommendations", h.GetRecommendations)
			users.GET("/:id/preferences", h.GetPreferences)
			users.PUT("/:id/preferences", h.UpdatePreferences)

			users.GET("/:id/ratings", h.ListRatings)
			users.POST("/:id/ratings", h.UpsertRating)
			users.DELETE("/:id/ratings/:movie_id", h.DeleteRating)

			users.POST("/:id/thumbs", h.SetThumbs)
			users.DELETE("/:id/thumbs/:movie_id", h.ClearThumbs)

			users.GET("/:id/favorites", h.ListFavorites)
			users.POST("/:id/favorites", h.AddFavorite)
			users.DELETE("/:id/favorites/:movie_id", h.RemoveFavorite)

			users.GET("/:id/watchlist", h.ListWatchlist)
			users.POST("/:id/watchlist", h.AddToWatchlist)
			users.DELETE("/:id/watchlist/:movie_id", h.RemoveFromWatchlist)

			users.POST("/:id/clicks", h.TrackClick)
		}

		movies := api.Group("/movies")
		{
			movies.GET("", h.ListMovies)
			movies.POST("", h.UpsertMovie)
			movies.GET("/popular", h.GetPopularMovies)
			movies.GET("/:id", h.GetMovie)
			movies.GET("/:id/similar", h.GetSimilarMovies)
		}

		analyticsGroup := api.Group("/analytics")
		{
			analyticsGroup.GET("/performance", h.GetAlgorithmPerformance)
			analyticsGroup.GET("/stats", h.GetAnalyticsStats)
			analyticsGroup.GET("/top", h.GetTopAlgorithm)
			analyticsGroup.GET("/top-movies", h.GetTopPerformingMovies)
			analyticsGroup.GET("/active-users", h.GetMostActiveUsers)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/models/update", h.ForceModelUpdate)
			admin.GET("/models/status", h.GetModelStatus)
		}
	}

	// Server configuration
	port := os.Getenv("PORT")
	if port == "" {
		port = "8787"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("🎬 CineMatch backend starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Log.Info("Server exited")
}
