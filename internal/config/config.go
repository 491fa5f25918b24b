package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env  string
	Port string

	RedisAddr string
	RedisPass string
	RedisDB   int

	JWTSecret string

	// All money values are in the smallest currency unit.
	DemoStartBalance int64
	MinBet           int64
	MaxBet           int64

	CrashRTP           float64
	CrashMaxMultiplier float64
	CrashGrowthRate    float64 // exponential growth per second
	CrashBetWindow     time.Duration

	MinesRTP      float64
	MinesGridSize int

	ShoeDecks  int
	TableSeats int

	// How long a minted withdrawal artifact stays claimable.
	WithdrawTTL time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASSWORD", ""),
		RedisDB:   getInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", ""),

		DemoStartBalance: getInt64("DEMO_START_BALANCE", 100000), // $1000.00
		MinBet:           getInt64("MIN_BET", 1),
		MaxBet:           getInt64("MAX_BET", 1000000),

		CrashRTP:           getFloat("CRASH_RTP", 0.97),
		CrashMaxMultiplier: getFloat("CRASH_MAX_MULTIPLIER", 1000.0),
		CrashGrowthRate:    getFloat("CRASH_GROWTH_RATE", 0.06),
		CrashBetWindow:     getDuration("CRASH_BET_WINDOW", 5*time.Second),

		MinesRTP:      getFloat("MINES_RTP", 0.97),
		MinesGridSize: getInt("MINES_GRID_SIZE", 25),

		ShoeDecks:  getInt("SHOE_DECKS", 6),
		TableSeats: getInt("TABLE_SEATS", 5),

		WithdrawTTL: getDuration("WITHDRAW_TTL", 15*time.Minute),
	}

	if cfg.Env == "production" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	if cfg.MinBet < 1 || cfg.MaxBet < cfg.MinBet {
		return nil, fmt.Errorf("invalid bet limits: min %d, max %d", cfg.MinBet, cfg.MaxBet)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
