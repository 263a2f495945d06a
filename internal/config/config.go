package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	defaultScoreGoal           = 5
	defaultAIDifficulty        = "medium"
	defaultTournamentRetention = 24 * time.Hour
	defaultHealthCheckInterval = time.Minute
)

// Load reads configuration from environment variables and .env file.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	// A helper function to get a required env var. It will fail if the env var is not set.
	getEnv := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		log.Fatalf("Error: Required environment variable %s is not set.", key)
		return "" // This line is never reached
	}

	return Config{
		DBName: getEnv("DB_NAME"),
		Port:   getEnv("PORT"),
		Turso: TursoConfig{
			PrimaryURL: os.Getenv("TURSO_PRIMARY_URL"),
			AuthToken:  os.Getenv("TURSO_AUTH_TOKEN"),
		},
		Slack: SlackConfig{
			Token:     os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		ProjectID:           os.Getenv("GCP_PROJECT"),
		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
		ScoreGoal:           intOr("SCORE_GOAL", defaultScoreGoal),
		AIDifficulty:        stringOr("AI_DIFFICULTY", defaultAIDifficulty),
		TournamentRetention: durationOr("TOURNAMENT_RETENTION", defaultTournamentRetention),
		HealthCheckInterval: durationOr("HEALTH_CHECK_INTERVAL", defaultHealthCheckInterval),
		LogLevel:            stringOr("LOG_LEVEL", "info"),
	}
}

func stringOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn("Ignoring invalid integer env var", "key", key, "value", v)
		return fallback
	}
	return n
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn("Ignoring invalid duration env var", "key", key, "value", v)
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
