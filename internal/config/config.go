package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the server configuration, read once at startup from the
// environment.
type Config struct {
	Port   string
	DBPath string

	// Decision oracle.
	OracleAPIKey  string
	OracleBaseURL string
	OracleModel   string
	OracleTimeout time.Duration

	// AuthSecret enables JWT auth on mutating routes when non-empty.
	AuthSecret string

	// Rule policy expressions; empty values fall back to genre convention.
	MafiaWinCondition   string
	VillageWinCondition string
	TieBreak            string

	// Rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// FromEnv builds the configuration from environment variables with sane
// defaults.
func FromEnv() Config {
	return Config{
		Port:   getenv("PORT", "8080"),
		DBPath: getenv("DB_PATH", "mafia.db"),

		OracleAPIKey:  os.Getenv("ORACLE_API_KEY"),
		OracleBaseURL: os.Getenv("ORACLE_BASE_URL"),
		OracleModel:   getenv("ORACLE_MODEL", "anthropic/claude-3.5-haiku"),
		OracleTimeout: getduration("ORACLE_TIMEOUT", 20*time.Second),

		AuthSecret: os.Getenv("AUTH_SECRET"),

		MafiaWinCondition:   os.Getenv("MAFIA_WIN_CONDITION"),
		VillageWinCondition: os.Getenv("VILLAGE_WIN_CONDITION"),
		TieBreak:            os.Getenv("VOTE_TIE_BREAK"),

		RateLimitRPS:   getfloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getint("RATE_LIMIT_BURST", 20),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
