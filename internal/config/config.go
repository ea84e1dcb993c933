package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Reminder ReminderConfig `mapstructure:"reminder" validate:"required"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Email    EmailConfig    `mapstructure:"email"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings: the JWT secret used to
// validate interactive-user tokens issued by the quoting app, and the basic
// credential pair required by the cron trigger endpoint. The cron password
// is configured as a bcrypt hash, never in the clear.
type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret"         validate:"required,min=32"`
	CronUser         string `mapstructure:"cron_user"`
	CronPasswordHash string `mapstructure:"cron_password_hash"`
}

// WebhookConfig contains the inbound webhook settings. An empty secret
// disables authentication of provider events; that trust boundary is the
// deployment's call, not this service's.
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// ReminderConfig contains the dispatch policy knobs.
type ReminderConfig struct {
	// MaxAttempts is the transient-failure budget before a reminder is
	// marked Failed. Default 3.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`

	// BackoffBase and BackoffCap shape the exponential retry curve:
	// delay(n) = min(BackoffBase * 2^(n-1), BackoffCap).
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"required"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"  validate:"required"`

	// BatchSize bounds how many due tasks one batch run claims.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0"`

	// ClaimTTL is how long a dispatch claim is honored before a later run
	// may reclaim the task (crash recovery).
	ClaimTTL time.Duration `mapstructure:"claim_ttl" validate:"required"`

	// SendTimeout bounds each channel-sender call.
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"required"`

	// WorkerCount bounds concurrent dispatches within one batch.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
}

// ChatConfig contains the chat provider settings.
type ChatConfig struct {
	APIURL   string `mapstructure:"api_url"`
	APIToken string `mapstructure:"api_token"`
	SenderID string `mapstructure:"sender_id"`
}

// EmailConfig contains the SMTP settings for the email channel.
type EmailConfig struct {
	SMTPAddr string `mapstructure:"smtp_addr"`
	From     string `mapstructure:"from"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}
