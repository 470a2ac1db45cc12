package main

import (
	"context" // context package is needed for Redis operations
	"log"     // log package is needed for logging
	"time"    // Rate limiter window

	"ml_system/internal/api"        // Custom package for API handlers
	"ml_system/internal/config"     // Custom package for configuration
	"ml_system/internal/ledger"     // Token ledger
	"ml_system/internal/middleware" // Custom package for middleware
	"ml_system/internal/ratelimit"  // Sliding-window rate limiter
	"ml_system/internal/registry"   // Model registry
	"ml_system/internal/service"    // Training and prediction services

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Sliding window shared across instances via Redis
	window := time.Duration(cfg.RateWindowSec) * time.Second
	limiter := ratelimit.NewRedisLimiter(redisClient, cfg.RateLimit, window)

	// Model registry with the configured retrain policy
	reg, err := registry.New(db, registry.Config{Dir: cfg.ModelsDir, Overwrite: cfg.OverwriteModels})
	if err != nil {
		logrus.Fatalf("failed to initialize model registry: %v", err)
	}

	ledgerSvc := ledger.New(db)                          // Token ledger over the users table
	mlSvc := service.NewMLService(reg, cfg.TestFraction) // Training and prediction services

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Auth routes
	r.POST("/signup", api.SignupHandler(db))              // Registration endpoint
	r.POST("/login", api.LoginHandler(db, cfg.JWTSecret)) // Login endpoint
	r.DELETE("/user", api.DeleteUserHandler(db))          // Account removal endpoint

	// Metered routes (protected by JWT, then rate limited before any debit)
	authGroup := r.Group("/")
	authGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.RateLimitMiddleware(limiter), func(c *gin.Context) {
		c.Set("redisClient", redisClient)
		c.Next()
	})
	authGroup.POST("/train", api.TrainHandler(mlSvc, ledgerSvc))                      // Train endpoint (1 token)
	authGroup.POST("/predict/:name", api.PredictHandler(mlSvc, ledgerSvc))            // Predict endpoint (5 tokens)
	authGroup.GET("/models", api.ListModelsHandler(mlSvc, ledgerSvc, redisClient))    // Model list endpoint (1 token)
	authGroup.GET("/models/:name/metrics", api.ModelMetricsHandler(mlSvc, ledgerSvc)) // Metrics endpoint (1 token)
	authGroup.GET("/tokens", api.GetTokensHandler(ledgerSvc))                         // Balance endpoint (free)
	authGroup.POST("/tokens/add", api.AddTokensHandler(ledgerSvc))                    // Token purchase endpoint (free)

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
