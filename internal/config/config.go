package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/llm-call-screener/")
	v.AddConfigPath("$HOME/.llm-call-screener")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("CALL_SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindCredentials(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// bindCredentials lets the usual vendor variables fill in missing API keys
func bindCredentials(v *viper.Viper) {
	_ = v.BindEnv("transcription.api_key", "CALL_SCREENER_TRANSCRIPTION_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("synthesis.api_key", "CALL_SCREENER_SYNTHESIS_API_KEY", "ELEVENLABS_API_KEY")
	_ = v.BindEnv("classification.api_key", "CALL_SCREENER_CLASSIFICATION_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("gemini.api_key", "CALL_SCREENER_GEMINI_API_KEY", "GEMINI_API_KEY")
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Transcription defaults
	v.SetDefault("transcription.provider", "whisper")
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.model", "")
	v.SetDefault("transcription.language", "en")
	v.SetDefault("transcription.base_url", "")

	// Synthesis defaults
	v.SetDefault("synthesis.provider", "elevenlabs")
	v.SetDefault("synthesis.api_key", "")
	v.SetDefault("synthesis.model", "")
	v.SetDefault("synthesis.voice_id", "")
	v.SetDefault("synthesis.stability", 0.5)
	v.SetDefault("synthesis.similarity", 0.5)
	v.SetDefault("synthesis.base_url", "")

	// Classification defaults
	v.SetDefault("classification.provider", "openai")
	v.SetDefault("classification.api_key", "")
	v.SetDefault("classification.model", "")
	v.SetDefault("classification.temperature", 0.0)
	v.SetDefault("classification.max_tokens", 500)
	v.SetDefault("classification.reply_temperature", 0.7)
	v.SetDefault("classification.reply_max_tokens", 100)
	v.SetDefault("classification.max_transcript_size", 4096)
	v.SetDefault("classification.base_url", "")

	// Provider specific defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("bedrock.region", "us-east-1")

	// Screening defaults
	v.SetDefault("screening.assistant_name", "Luci")
	v.SetDefault("screening.callee_name", "")
	v.SetDefault("screening.adapter_timeout", "15s")
	v.SetDefault("screening.max_attempts", 3)
	v.SetDefault("screening.initial_backoff", "500ms")
	v.SetDefault("screening.max_backoff", "5s")
	v.SetDefault("screening.spam_threshold", 0.7)
	v.SetDefault("screening.trusted_numbers", []string{})
	v.SetDefault("screening.acknowledge_caller", true)

	// Repository defaults
	v.SetDefault("repository.type", "memory")
	v.SetDefault("repository.retention", "720h")
	v.SetDefault("repository.cleanup_frequency", "1h")
	v.SetDefault("repository.sqlite_path", "/data/call_records.db")
	v.SetDefault("repository.mysql_dsn", "user:password@tcp(localhost:3306)/call_screener?parseTime=true")
	v.SetDefault("repository.redis_addr", "localhost:6379")
	v.SetDefault("repository.redis_password", "")
	v.SetDefault("repository.redis_db", 0)
	v.SetDefault("repository.history_limit", 50)

	// Server defaults
	v.SetDefault("server.listen_address", "0.0.0.0:8080")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.max_audio_size", 10<<20)
	v.SetDefault("server.shutdown_timeout", "10s")

	// Notification defaults
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.smtp_address", "localhost:25")
	v.SetDefault("notify.helo", "localhost")
	v.SetDefault("notify.from", "call-screener@localhost")
	v.SetDefault("notify.to", []string{})
	v.SetDefault("notify.username", "")
	v.SetDefault("notify.password", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// Set overrides a configuration value
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
