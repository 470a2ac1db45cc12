package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort         string  // Application port
	DBUser          string  // Database user
	DBPassword      string  // Database password
	DBHost          string  // Database host
	DBPort          string  // Database port
	DBName          string  // Database name
	JWTSecret       string  // JWT secret key
	RedisAddr       string  // Redis server address
	RedisPass       string  // Redis password
	RedisDB         int     // Redis database number
	ModelsDir       string  // Directory for persisted model artifacts
	RateLimit       int     // Max requests per user per window
	RateWindowSec   int     // Sliding window length in seconds
	TestFraction    float64 // Fraction of rows held out for evaluation
	OverwriteModels bool    // Whether retraining an existing name replaces it
	IsProd          bool    // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:         os.Getenv("APP_PORT"),                    // Application port
		DBUser:          os.Getenv("DB_USER"),                     // Database user
		DBPassword:      os.Getenv("DB_PASSWORD"),                 // Database password
		DBHost:          os.Getenv("DB_HOST"),                     // Database host
		DBPort:          os.Getenv("DB_PORT"),                     // Database port
		DBName:          os.Getenv("DB_NAME"),                     // Database name
		JWTSecret:       os.Getenv("JWT_SECRET"),                  // JWT secret key
		RedisAddr:       os.Getenv("REDIS_ADDR"),                  // Redis server address
		RedisPass:       os.Getenv("REDIS_PASS"),                  // Redis password
		RedisDB:         redisDB,                                  // Redis database number
		ModelsDir:       envOr("MODELS_DIR", "models"),            // Artifact directory
		RateLimit:       envInt("RATE_LIMIT", 20),                 // Requests per window
		RateWindowSec:   envInt("RATE_WINDOW_SEC", 60),            // Window length
		TestFraction:    envFloat("TEST_FRACTION", 0.2),           // Evaluation split
		OverwriteModels: os.Getenv("OVERWRITE_MODELS") != "false", // Retrain policy (default: overwrite)
		IsProd:          os.Getenv("IS_PROD") == "true",           // Is production environment
	}
}

// envOr returns the environment variable or a default if unset
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt returns the environment variable parsed as int, or a default
func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

// envFloat returns the environment variable parsed as float, or a default
func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 && v < 1 {
		return v
	}
	return def
}
