package core

import "strings"

// ProviderKind identifies which adapter a configuration belongs to
type ProviderKind string

const (
	KindTranscription  ProviderKind = "transcription"
	KindSynthesis      ProviderKind = "synthesis"
	KindClassification ProviderKind = "classification"
)

// ProviderID names an upstream backend
type ProviderID string

const (
	ProviderWhisper     ProviderID = "whisper"
	ProviderGoogle      ProviderID = "google"
	ProviderElevenLabs  ProviderID = "elevenlabs"
	ProviderAWSPolly    ProviderID = "aws_polly"
	ProviderOpenAI      ProviderID = "openai"
	ProviderGemini      ProviderID = "gemini"
	ProviderBedrock     ProviderID = "bedrock"
	ProviderHuggingFace ProviderID = "huggingface"
)

// KnownProviders lists every backend name recognised per adapter kind,
// implemented or not
var KnownProviders = map[ProviderKind][]ProviderID{
	KindTranscription:  {ProviderWhisper, ProviderGemini, ProviderGoogle},
	KindSynthesis:      {ProviderElevenLabs, ProviderOpenAI, ProviderAWSPolly},
	KindClassification: {ProviderOpenAI, ProviderGemini, ProviderBedrock, ProviderHuggingFace},
}

// NormalizeProvider lowercases and trims a provider name
func NormalizeProvider(s string) ProviderID {
	return ProviderID(strings.ToLower(strings.TrimSpace(s)))
}

// ProviderConfig carries the settings for one adapter call. Values are copied
// into every invocation and never mutated afterwards.
type ProviderConfig struct {
	Provider    ProviderID `json:"provider,omitempty" mapstructure:"provider"`
	Credential  string     `json:"-" mapstructure:"credential"`
	Model       string     `json:"model,omitempty" mapstructure:"model"`
	BaseURL     string     `json:"baseUrl,omitempty" mapstructure:"base_url"`
	Language    string     `json:"language,omitempty" mapstructure:"language"`
	VoiceID     string     `json:"voiceId,omitempty" mapstructure:"voice_id"`
	Temperature *float32   `json:"temperature,omitempty" mapstructure:"temperature"`
	Stability   *float64   `json:"stability,omitempty" mapstructure:"stability"`
	Similarity  *float64   `json:"similarity,omitempty" mapstructure:"similarity"`
	MaxTokens   int        `json:"maxTokens,omitempty" mapstructure:"max_tokens"`
}

// Merge returns c overlaid with every field set in override
func (c ProviderConfig) Merge(override ProviderConfig) ProviderConfig {
	out := c
	if override.Provider != "" {
		out.Provider = override.Provider
	}
	if override.Credential != "" {
		out.Credential = override.Credential
	}
	if override.Model != "" {
		out.Model = override.Model
	}
	if override.BaseURL != "" {
		out.BaseURL = override.BaseURL
	}
	if override.Language != "" {
		out.Language = override.Language
	}
	if override.VoiceID != "" {
		out.VoiceID = override.VoiceID
	}
	if override.Temperature != nil {
		out.Temperature = Float32(*override.Temperature)
	}
	if override.Stability != nil {
		out.Stability = Float64(*override.Stability)
	}
	if override.Similarity != nil {
		out.Similarity = Float64(*override.Similarity)
	}
	if override.MaxTokens > 0 {
		out.MaxTokens = override.MaxTokens
	}
	return out
}

// TemperatureOr returns the configured temperature or def
func (c ProviderConfig) TemperatureOr(def float32) float32 {
	if c.Temperature == nil {
		return def
	}
	return *c.Temperature
}

// StabilityOr returns the configured voice stability or def
func (c ProviderConfig) StabilityOr(def float64) float64 {
	if c.Stability == nil {
		return def
	}
	return *c.Stability
}

// SimilarityOr returns the configured voice similarity boost or def
func (c ProviderConfig) SimilarityOr(def float64) float64 {
	if c.Similarity == nil {
		return def
	}
	return *c.Similarity
}

// Float32 returns a pointer to v
func Float32(v float32) *float32 { return &v }

// Float64 returns a pointer to v
func Float64(v float64) *float64 { return &v }

const (
	// DefaultConfidence is reported when a transcription provider gives none
	DefaultConfidence = 0.9
	// DefaultVoiceStability and DefaultVoiceSimilarity are mid-range voice settings
	DefaultVoiceStability  = 0.5
	DefaultVoiceSimilarity = 0.5
	// DefaultReplyTemperature is used for free-text replies unless overridden
	DefaultReplyTemperature = 0.7
	// DefaultReplyMaxTokens bounds free-text replies
	DefaultReplyMaxTokens = 100
)

// DefaultTranscriptionConfig is the built-in transcription configuration
func DefaultTranscriptionConfig() ProviderConfig {
	return ProviderConfig{
		Provider: ProviderWhisper,
		Model:    "whisper-1",
		Language: "en",
	}
}

// DefaultSynthesisConfig is the built-in speech synthesis configuration
func DefaultSynthesisConfig() ProviderConfig {
	return ProviderConfig{
		Provider:   ProviderElevenLabs,
		Model:      "eleven_monolingual_v1",
		VoiceID:    "EXAVITQu4vr4xnSDxMaL",
		Stability:  Float64(DefaultVoiceStability),
		Similarity: Float64(DefaultVoiceSimilarity),
	}
}

// DefaultClassificationConfig is the built-in classifier configuration.
// Classification runs at temperature zero so verdicts are reproducible.
func DefaultClassificationConfig() ProviderConfig {
	return ProviderConfig{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o",
		Temperature: Float32(0),
		MaxTokens:   500,
	}
}

// CheckProvider fails with UnsupportedProviderError unless cfg names provider
func CheckProvider(kind ProviderKind, provider ProviderID, cfg ProviderConfig) error {
	if cfg.Provider != provider {
		return &UnsupportedProviderError{Kind: kind, Provider: cfg.Provider}
	}
	return nil
}

// Resolve merges override into defaults and verifies that the result targets
// provider and carries a credential. Adapters call it before any network I/O.
func Resolve(kind ProviderKind, provider ProviderID, defaults, override ProviderConfig) (ProviderConfig, error) {
	cfg := defaults.Merge(override)
	if err := CheckProvider(kind, provider, cfg); err != nil {
		return cfg, err
	}
	if strings.TrimSpace(cfg.Credential) == "" {
		return cfg, &ConfigurationError{Kind: kind, Provider: provider, Reason: "no credential configured"}
	}
	return cfg, nil
}
