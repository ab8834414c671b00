package config

import "time"

const (
	DefaultMaxTeamSize    = 1000
	DefaultMaxUploadBytes = 500 << 20
	DefaultPollInterval   = 30 * time.Second
)

// Portal gathers every setting the server needs at startup.
type Portal struct {
	Port      string
	LogLevel  string
	LogFormat string

	DBDriver string
	DBDSN    string

	UploadDir      string
	PublicBaseURL  string
	MaxTeamSize    int
	MaxUploadBytes int64

	PollInterval time.Duration

	WebhookURL     string
	WebhookSecret  string
	WebhookTimeout time.Duration

	RedisAddr    string
	RedisChannel string

	RulesFile string
}

// FromEnv reads the portal settings from the environment, applying defaults.
// Call Load first if a .env file should be honoured.
func FromEnv() Portal {
	return Portal{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		DBDriver: GetEnv("DB_DRIVER", "sqlite"),
		DBDSN:    GetEnv("DB_DSN", "contest.db"),

		UploadDir:      GetEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL:  GetEnv("PUBLIC_BASE_URL", ""),
		MaxTeamSize:    GetEnvInt("MAX_TEAM_SIZE", DefaultMaxTeamSize),
		MaxUploadBytes: GetEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),

		PollInterval: GetEnvDuration("DASHBOARD_POLL_INTERVAL", DefaultPollInterval),

		WebhookURL:     GetEnv("WEBHOOK_ENDPOINT_URL", ""),
		WebhookSecret:  GetEnv("WEBHOOK_SECRET", ""),
		WebhookTimeout: GetEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),

		RedisAddr:    GetEnv("REDIS_ADDR", ""),
		RedisChannel: GetEnv("REDIS_CHANNEL", "contest:submissions"),

		RulesFile: GetEnv("CONTEST_RULES_FILE", ""),
	}
}
