package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by HINDSIGHT_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("HINDSIGHT_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// RedisURL returns the Redis connection URL for the frame cache.
// Empty means caching is disabled.
func RedisURL() string {
	return os.Getenv("REDIS_URL")
}

// CacheTTL returns how long cached frames live.
// Defaults to 5 minutes if not set or unparsable.
func CacheTTL() time.Duration {
	ttl, err := time.ParseDuration(os.Getenv("CACHE_TTL"))
	if err != nil || ttl < 0 {
		return 5 * time.Minute
	}
	return ttl
}

// DemoYear returns the reference year for demo deployments.
// Zero (the default) disables demo-mode year translation.
func DemoYear() int {
	if os.Getenv("MODE") != "demo" {
		return 0
	}
	year, err := strconv.Atoi(os.Getenv("DEMO_YEAR"))
	if err != nil || year <= 0 {
		return 0
	}
	return year
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
