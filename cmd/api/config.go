package main

import (
	"fmt"
	"os"
	"strconv"

	"refdesk/conflict"
	"refdesk/lookup"
)

// Config collects the environment settings. Every knob except DATABASE_URL
// and JWT_SECRET has a default suitable for a small installation.
type Config struct {
	DatabaseURL string
	ListenAddr  string
	JWTSecret   string

	EnableDetailedLogs    bool
	ResultsPerPage        int
	TreeMaxDepth          int
	AutoRefresh           bool
	ConflictHighThreshold int
}

func LoadConfig() (Config, error) {
	cfg := Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		ListenAddr:            envOr("LISTEN_ADDR", ":8080"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		EnableDetailedLogs:    envBool("ENABLE_DETAILED_LOGS", true),
		ResultsPerPage:        envInt("RESULTS_PER_PAGE", 20),
		TreeMaxDepth:          envInt("TREE_MAX_DEPTH", lookup.DefaultMaxDepth),
		AutoRefresh:           envBool("AUTO_REFRESH", false),
		ConflictHighThreshold: envInt("CONFLICT_HIGH_THRESHOLD", conflict.DefaultHighThreshold),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required")
	}
	if cfg.ResultsPerPage < 1 || cfg.ResultsPerPage > lookup.DefaultMaxResults {
		return Config{}, fmt.Errorf("config: RESULTS_PER_PAGE must be between 1 and %d", lookup.DefaultMaxResults)
	}
	if cfg.ConflictHighThreshold < 1 {
		return Config{}, fmt.Errorf("config: CONFLICT_HIGH_THRESHOLD must be at least 1")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
