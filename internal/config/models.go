package config

import (
	"fmt"
	"time"

	"github.com/mikey/llm-call-screener/internal/core"
)

// ReplyConfig holds the tunables for free-text reply generation
type ReplyConfig struct {
	Temperature float32
	MaxTokens   int
}

// ClassificationConfig represents the configuration for the classifier
type ClassificationConfig struct {
	Provider          core.ProviderConfig
	Reply             ReplyConfig
	MaxTranscriptSize int
	BedrockRegion     string
}

// ScreeningConfig represents the configuration for the orchestrator
type ScreeningConfig struct {
	AssistantName     string
	CalleeName        string
	AdapterTimeout    time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	SpamThreshold     float64
	TrustedNumbers    []string
	AcknowledgeCaller bool
}

// RepositoryConfig represents the configuration for call record storage
type RepositoryConfig struct {
	Type             string
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	HistoryLimit     int
}

// ServerConfig represents the configuration for the HTTP gateway
type ServerConfig struct {
	ListenAddress   string
	RateLimit       float64
	RateBurst       int
	MaxAudioSize    int64
	ShutdownTimeout time.Duration
}

// NotifyConfig represents the configuration for SMTP notifications
type NotifyConfig struct {
	Enabled     bool
	SMTPAddress string
	Helo        string
	From        string
	To          []string
	Username    string
	Password    string
}

// GetTranscription returns the configured transcription provider settings
func (c *Config) GetTranscription() core.ProviderConfig {
	return core.ProviderConfig{
		Provider:   core.NormalizeProvider(c.GetString("transcription.provider")),
		Credential: c.credential("transcription"),
		Model:      c.GetString("transcription.model"),
		Language:   c.GetString("transcription.language"),
		BaseURL:    c.GetString("transcription.base_url"),
	}
}

// GetSynthesis returns the configured speech synthesis provider settings
func (c *Config) GetSynthesis() core.ProviderConfig {
	return core.ProviderConfig{
		Provider:   core.NormalizeProvider(c.GetString("synthesis.provider")),
		Credential: c.credential("synthesis"),
		Model:      c.GetString("synthesis.model"),
		VoiceID:    c.GetString("synthesis.voice_id"),
		BaseURL:    c.GetString("synthesis.base_url"),
		Stability:  core.Float64(c.GetFloat64("synthesis.stability")),
		Similarity: core.Float64(c.GetFloat64("synthesis.similarity")),
	}
}

// GetClassification returns the configured classifier settings
func (c *Config) GetClassification() ClassificationConfig {
	return ClassificationConfig{
		Provider: core.ProviderConfig{
			Provider:    core.NormalizeProvider(c.GetString("classification.provider")),
			Credential:  c.credential("classification"),
			Model:       c.GetString("classification.model"),
			BaseURL:     c.GetString("classification.base_url"),
			Temperature: core.Float32(float32(c.GetFloat64("classification.temperature"))),
			MaxTokens:   c.GetInt("classification.max_tokens"),
		},
		Reply: ReplyConfig{
			Temperature: float32(c.GetFloat64("classification.reply_temperature")),
			MaxTokens:   c.GetInt("classification.reply_max_tokens"),
		},
		MaxTranscriptSize: c.GetInt("classification.max_transcript_size"),
		BedrockRegion:     c.GetString("bedrock.region"),
	}
}

// credential resolves the API key for an adapter section. Gemini keeps its own
// key so it can run next to an OpenAI-backed adapter.
func (c *Config) credential(section string) string {
	if core.NormalizeProvider(c.GetString(section+".provider")) == core.ProviderGemini {
		if key := c.GetString("gemini.api_key"); key != "" {
			return key
		}
	}
	return c.GetString(section + ".api_key")
}

// GetScreening returns the orchestrator configuration
func (c *Config) GetScreening() (ScreeningConfig, error) {
	timeout, err := c.GetDuration("screening.adapter_timeout")
	if err != nil {
		return ScreeningConfig{}, err
	}
	if timeout <= 0 {
		return ScreeningConfig{}, fmt.Errorf("screening.adapter_timeout must be positive, got %s", timeout)
	}
	initial, err := c.GetDuration("screening.initial_backoff")
	if err != nil {
		return ScreeningConfig{}, err
	}
	maxBackoff, err := c.GetDuration("screening.max_backoff")
	if err != nil {
		return ScreeningConfig{}, err
	}
	attempts := c.GetInt("screening.max_attempts")
	if attempts < 1 {
		return ScreeningConfig{}, fmt.Errorf("screening.max_attempts must be at least 1, got %d", attempts)
	}

	return ScreeningConfig{
		AssistantName:     c.GetString("screening.assistant_name"),
		CalleeName:        c.GetString("screening.callee_name"),
		AdapterTimeout:    timeout,
		MaxAttempts:       attempts,
		InitialBackoff:    initial,
		MaxBackoff:        maxBackoff,
		SpamThreshold:     c.GetFloat64("screening.spam_threshold"),
		TrustedNumbers:    c.GetStringSlice("screening.trusted_numbers"),
		AcknowledgeCaller: c.GetBool("screening.acknowledge_caller"),
	}, nil
}

// GetRepository returns the call record storage configuration
func (c *Config) GetRepository() (RepositoryConfig, error) {
	retention, err := c.GetDuration("repository.retention")
	if err != nil {
		return RepositoryConfig{}, err
	}
	cleanup, err := c.GetDuration("repository.cleanup_frequency")
	if err != nil {
		return RepositoryConfig{}, err
	}

	return RepositoryConfig{
		Type:             c.GetString("repository.type"),
		Retention:        retention,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("repository.sqlite_path"),
		MySQLDSN:         c.GetString("repository.mysql_dsn"),
		RedisAddr:        c.GetString("repository.redis_addr"),
		RedisPassword:    c.GetString("repository.redis_password"),
		RedisDB:          c.GetInt("repository.redis_db"),
		HistoryLimit:     c.GetInt("repository.history_limit"),
	}, nil
}

// GetServer returns the HTTP gateway configuration
func (c *Config) GetServer() (ServerConfig, error) {
	shutdown, err := c.GetDuration("server.shutdown_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		ListenAddress:   c.GetString("server.listen_address"),
		RateLimit:       c.GetFloat64("server.rate_limit"),
		RateBurst:       c.GetInt("server.rate_burst"),
		MaxAudioSize:    int64(c.GetInt("server.max_audio_size")),
		ShutdownTimeout: shutdown,
	}, nil
}

// GetNotify returns the notification configuration
func (c *Config) GetNotify() NotifyConfig {
	return NotifyConfig{
		Enabled:     c.GetBool("notify.enabled"),
		SMTPAddress: c.GetString("notify.smtp_address"),
		Helo:        c.GetString("notify.helo"),
		From:        c.GetString("notify.from"),
		To:          c.GetStringSlice("notify.to"),
		Username:    c.GetString("notify.username"),
		Password:    c.GetString("notify.password"),
	}
}
