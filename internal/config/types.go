package config

import "time"

// Config holds all configuration for the application.
type Config struct {
	DBName              string
	Port                string
	Turso               TursoConfig
	Slack               SlackConfig
	ProjectID           string
	AllowedOrigins      []string
	ScoreGoal           int
	AIDifficulty        string
	TournamentRetention time.Duration
	HealthCheckInterval time.Duration
	LogLevel            string
}

type SlackConfig struct {
	Token     string
	ChannelID string
}

// Enabled reports whether both the bot token and channel are configured.
func (s SlackConfig) Enabled() bool {
	return s.Token != "" && s.ChannelID != ""
}

type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}
