package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mikey/llm-call-screener/internal/core"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public ElevenLabs API endpoint
const DefaultBaseURL = "https://api.elevenlabs.io"

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 512

var _ core.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is an implementation of core.Synthesizer using ElevenLabs
type Synthesizer struct {
	defaults   core.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Synthesizer
type Option func(*Synthesizer)

// WithHTTPClient sets the HTTP client used for upstream calls
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Synthesizer) {
		s.httpClient = hc
	}
}

// NewSynthesizer creates a new ElevenLabs synthesizer
func NewSynthesizer(configured core.ProviderConfig, logger *zap.Logger, opts ...Option) *Synthesizer {
	defaults := core.DefaultSynthesisConfig()
	defaults.BaseURL = DefaultBaseURL

	s := &Synthesizer{
		defaults:   defaults.Merge(configured),
		httpClient: http.DefaultClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier
func (s *Synthesizer) Name() core.ProviderID { return core.ProviderElevenLabs }

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize converts text to audio. The response body is returned as is.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, override core.ProviderConfig) (*core.SynthesisResult, error) {
	cfg, err := core.Resolve(core.KindSynthesis, core.ProviderElevenLabs, s.defaults, override)
	if err != nil {
		return nil, err
	}
	if cfg.VoiceID == "" {
		return nil, &core.ConfigurationError{Kind: core.KindSynthesis, Provider: core.ProviderElevenLabs, Reason: "no voice id configured"}
	}

	payload, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: cfg.Model,
		VoiceSettings: voiceSettings{
			Stability:       cfg.StabilityOr(core.DefaultVoiceStability),
			SimilarityBoost: cfg.SimilarityOr(core.DefaultVoiceSimilarity),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", strings.TrimRight(cfg.BaseURL, "/"), url.PathEscape(cfg.VoiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &core.ConfigurationError{Kind: core.KindSynthesis, Provider: core.ProviderElevenLabs, Reason: fmt.Sprintf("invalid endpoint: %v", err)}
	}
	req.Header.Set("xi-api-key", cfg.Credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, core.NewProviderError(core.ProviderElevenLabs, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, core.NewProviderError(core.ProviderElevenLabs, resp.StatusCode, fmt.Errorf("elevenlabs error: %s", strings.TrimSpace(string(errBody))))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError(core.ProviderElevenLabs, resp.StatusCode, fmt.Errorf("failed to read audio: %w", err))
	}

	s.logger.Debug("Speech synthesized",
		zap.String("voice", cfg.VoiceID),
		zap.String("model", cfg.Model),
		zap.Int("audio_bytes", len(audio)))

	return &core.SynthesisResult{
		Audio:    audio,
		Format:   formatFromContentType(resp.Header.Get("Content-Type")),
		Provider: string(core.ProviderElevenLabs),
		VoiceID:  cfg.VoiceID,
	}, nil
}

func formatFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return "wav"
	case strings.Contains(ct, "ogg"):
		return "ogg"
	case strings.Contains(ct, "pcm"):
		return "pcm"
	default:
		return "mp3"
	}
}
