package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Breaker  BreakerConfig  `mapstructure:"breaker"  validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains the operational HTTP endpoint and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// WorkerConfig controls the task runner: how many workers pull tasks
// concurrently and how many submitted tasks the in-memory queue buffers.
type WorkerConfig struct {
	Count     int `mapstructure:"count"      validate:"required,gt=0"`
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`
}

// BreakerConfig carries the default circuit breaker thresholds applied to
// breakers the application constructs at startup.
type BreakerConfig struct {
	FailureThreshold       int `mapstructure:"failure_threshold"        validate:"required,gt=0"`
	RecoveryTimeoutSeconds int `mapstructure:"recovery_timeout_seconds" validate:"required,gt=0"`
	SuccessThreshold       int `mapstructure:"success_threshold"        validate:"required,gt=0"`
}

// LLMConfig contains settings for the Gemini-backed reference handler. The
// group is optional: without an API key the handler is simply not registered.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`
}
