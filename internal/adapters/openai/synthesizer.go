package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var _ core.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is an implementation of core.Synthesizer using OpenAI speech.
// OpenAI voices take no stability or similarity tuning, so those are ignored.
type Synthesizer struct {
	defaults   core.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSynthesizer creates a new OpenAI speech synthesizer
func NewSynthesizer(configured core.ProviderConfig, httpClient *http.Client, logger *zap.Logger) *Synthesizer {
	defaults := core.ProviderConfig{
		Provider: core.ProviderOpenAI,
		Model:    string(openai.TTSModel1),
		VoiceID:  string(openai.VoiceAlloy),
	}
	return &Synthesizer{
		defaults:   defaults.Merge(configured),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Name returns the provider identifier
func (s *Synthesizer) Name() core.ProviderID { return core.ProviderOpenAI }

// Synthesize converts text to mp3 audio
func (s *Synthesizer) Synthesize(ctx context.Context, text string, override core.ProviderConfig) (*core.SynthesisResult, error) {
	cfg, err := core.Resolve(core.KindSynthesis, core.ProviderOpenAI, s.defaults, override)
	if err != nil {
		return nil, err
	}

	resp, err := newClient(cfg, s.httpClient).CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(cfg.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(cfg.VoiceID),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, providerError(core.ProviderOpenAI, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, core.NewProviderError(core.ProviderOpenAI, 0, fmt.Errorf("failed to read speech response: %w", err))
	}

	s.logger.Debug("Speech synthesized",
		zap.String("voice", cfg.VoiceID),
		zap.Int("audio_bytes", len(audio)))

	return &core.SynthesisResult{
		Audio:    audio,
		Format:   "mp3",
		Provider: string(core.ProviderOpenAI),
		VoiceID:  cfg.VoiceID,
	}, nil
}
