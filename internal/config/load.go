package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables (REMINDER_ prefix, underscores for nesting) take
// precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REMINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A config file is optional; only a malformed one is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Empty defaults register the keys so AutomaticEnv can see them.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.cron_user", "")
	v.SetDefault("auth.cron_password_hash", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("chat.api_url", "")
	v.SetDefault("chat.api_token", "")
	v.SetDefault("chat.sender_id", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")

	v.SetDefault("reminder.max_attempts", 3)
	v.SetDefault("reminder.backoff_base", "15m")
	v.SetDefault("reminder.backoff_cap", "4h")
	v.SetDefault("reminder.batch_size", 100)
	v.SetDefault("reminder.claim_ttl", "5m")
	v.SetDefault("reminder.send_timeout", "10s")
	v.SetDefault("reminder.worker_count", 4)

	v.SetDefault("email.smtp_addr", "localhost:25")
}
