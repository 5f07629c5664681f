package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Points   PointsConfig
	Risk     RiskConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// PointsConfig holds point earning and redemption business rules
type PointsConfig struct {
	MinTransactionAmount float64 // below this no points are earned
	MaxEligibleAmount    float64 // earning base is capped at this amount
	EarningRate          float64 // points per currency unit
	InfluencerMultiplier float64 // bonus multiplier for influencer accounts
	MinRedemptionPoints  int
	MaxRedemptionPercent float64 // fraction of payment amount redeemable as points
	DailyEarnCap         int
	MonthlyEarnCap       int
	InfluencerMinFollowers  int
	InfluencerMinEngagement float64 // percent
}

// RiskConfig holds blocking engine and pattern analysis configuration
type RiskConfig struct {
	RuleCacheTTL     time.Duration
	ProfileCacheTTL  time.Duration
	ProfileHistory   int     // max completed payments used to build a profile
	AnomalyThreshold float64 // average anomaly score above which an attempt is anomalous
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "salonflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Points: PointsConfig{
			MinTransactionAmount: getEnvAsFloat("POINTS_MIN_TRANSACTION", 1000),
			MaxEligibleAmount:    getEnvAsFloat("POINTS_MAX_ELIGIBLE", 500000),
			EarningRate:          getEnvAsFloat("POINTS_EARNING_RATE", 0.01),
			InfluencerMultiplier: getEnvAsFloat("POINTS_INFLUENCER_MULTIPLIER", 1.5),
			MinRedemptionPoints:  getEnvAsInt("POINTS_MIN_REDEMPTION", 100),
			MaxRedemptionPercent: getEnvAsFloat("POINTS_MAX_REDEMPTION_PERCENT", 0.3),
			DailyEarnCap:         getEnvAsInt("POINTS_DAILY_CAP", 5000),
			MonthlyEarnCap:       getEnvAsInt("POINTS_MONTHLY_CAP", 50000),
			InfluencerMinFollowers:  getEnvAsInt("INFLUENCER_MIN_FOLLOWERS", 10000),
			InfluencerMinEngagement: getEnvAsFloat("INFLUENCER_MIN_ENGAGEMENT", 2.0),
		},
		Risk: RiskConfig{
			RuleCacheTTL:     getEnvAsDuration("RISK_RULE_CACHE_TTL", 5*time.Minute),
			ProfileCacheTTL:  getEnvAsDuration("RISK_PROFILE_CACHE_TTL", 5*time.Minute),
			ProfileHistory:   getEnvAsInt("RISK_PROFILE_HISTORY", 100),
			AnomalyThreshold: getEnvAsFloat("RISK_ANOMALY_THRESHOLD", 70),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
