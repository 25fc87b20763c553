package openai

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var _ core.Transcriber = (*Transcriber)(nil)

// audioFileName is the multipart file name sent with every upload
const audioFileName = "audio.wav"

// Transcriber is an implementation of core.Transcriber using the Whisper API
type Transcriber struct {
	defaults   core.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTranscriber creates a new Whisper transcriber
func NewTranscriber(configured core.ProviderConfig, httpClient *http.Client, logger *zap.Logger) *Transcriber {
	return &Transcriber{
		defaults:   core.DefaultTranscriptionConfig().Merge(configured),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Name returns the provider identifier
func (t *Transcriber) Name() core.ProviderID { return core.ProviderWhisper }

// Transcribe uploads audio as a multipart form and returns the recognised text
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, override core.ProviderConfig) (*core.TranscriptionResult, error) {
	cfg, err := core.Resolve(core.KindTranscription, core.ProviderWhisper, t.defaults, override)
	if err != nil {
		return nil, err
	}

	resp, err := newClient(cfg, t.httpClient).CreateTranscription(ctx, openai.AudioRequest{
		Model:    cfg.Model,
		FilePath: audioFileName,
		Reader:   bytes.NewReader(audio),
		Language: cfg.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, providerError(core.ProviderWhisper, err)
	}

	language := resp.Language
	if language == "" {
		language = cfg.Language
	}

	t.logger.Debug("Audio transcribed",
		zap.String("model", cfg.Model),
		zap.Int("audio_bytes", len(audio)),
		zap.Int("text_length", len(resp.Text)))

	return &core.TranscriptionResult{
		Text:       strings.TrimSpace(resp.Text),
		Confidence: core.DefaultConfidence,
		Language:   language,
		Provider:   string(core.ProviderWhisper),
		Model:      cfg.Model,
	}, nil
}
