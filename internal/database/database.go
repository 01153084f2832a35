package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cinematch/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection.
// DATABASE_DRIVER=sqlite selects a local sqlite file (development and tests);
// the default is Postgres via DATABASE_URL or DB_* components.
func Initialize() error {
	var dialector gorm.Dialector

	if os.Getenv("DATABASE_DRIVER") == "sqlite" {
		path := os.Getenv("DATABASE_PATH")
		if path == "" {
			path = "cinematch.db"
		}
		dialector = sqlite.Open(path)
	} else {
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			// Fallback to individual components
			host := getEnvOrDefault("DB_HOST", "localhost")
			port := getEnvOrDefault("DB_PORT", "5432")
			user := getEnvOrDefault("DB_USER", "postgres")
			password := getEnvOrDefault("DB_PASSWORD", "")
			dbname := getEnvOrDefault("DB_NAME", "cinematch")
			sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

			databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				host, port, user, password, dbname, sslmode)
		}
		dialector = postgres.Open(databaseURL)
	}

	// Configure GORM logger
	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	log.Println("Database connected successfully")

	return nil
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(
		&models.User{},
		&models.Movie{},
		&models.Rating{},
		&models.Favorite{},
		&models.WatchlistItem{},
		&models.ThumbsSignal{},
		&models.RecommendationEvent{},
		&models.ModelUpdateLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// createIndexes creates performance indexes used by the hot query paths
func createIndexes() error {
	// Movie indexes for popularity and cohort ranking
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_movies_popularity ON movies (popularity DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_movies_vote_average ON movies (vote_average DESC) WHERE vote_count >= 50")

	// Rating indexes for per-user history and matrix loading
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_ratings_user_timestamp ON ratings (user_id, timestamp DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_ratings_movie ON ratings (movie_id)")

	// Impression log indexes for analytics windows
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_rec_events_user_movie ON recommendation_events (user_id, movie_id, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_rec_events_algorithm ON recommendation_events (algorithm, created_at DESC)")

	// Model update history ordering
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_model_updates_created ON model_update_logs (created_at DESC)")

	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
