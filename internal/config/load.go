package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables use the TASKENGINE_ prefix with underscores for
// nesting (TASKENGINE_SERVER_PORT, TASKENGINE_DATABASE_URL) and take
// precedence over file values. Returns a validated Config or an error
// describing what failed to load or validate.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: taskengine.yaml in the working directory or /etc.
	v.SetConfigName("taskengine")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/taskengine")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing file is fine; env vars and defaults carry the config.
	}

	v.SetEnvPrefix("TASKENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so bind the
	// ones that have no default explicitly.
	for _, key := range []string{
		"database.url",
		"llm.gemini_api_key",
		"llm.model_name",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.recovery_timeout_seconds", 30)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
}

func validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]string, 0, len(validationErrs))
			for _, fieldErr := range validationErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("configuration validation failed: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
