package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-call-screener/internal/core"
	"go.uber.org/zap"
)

var _ core.Transcriber = (*Transcriber)(nil)

// Transcriber is an implementation of core.Transcriber that sends the audio
// inline to a Gemini model
type Transcriber struct {
	defaults core.ProviderConfig
	logger   *zap.Logger
}

// NewTranscriber creates a new Gemini transcriber
func NewTranscriber(configured core.ProviderConfig, logger *zap.Logger) *Transcriber {
	defaults := core.DefaultTranscriptionConfig()
	defaults.Provider = core.ProviderGemini
	defaults.Model = DefaultModel

	return &Transcriber{
		defaults: defaults.Merge(configured),
		logger:   logger,
	}
}

// Name returns the provider identifier
func (t *Transcriber) Name() core.ProviderID { return core.ProviderGemini }

// Transcribe returns the words spoken in audio
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, override core.ProviderConfig) (*core.TranscriptionResult, error) {
	cfg, err := core.Resolve(core.KindTranscription, core.ProviderGemini, t.defaults, override)
	if err != nil {
		return nil, err
	}

	client, err := newClient(ctx, core.KindTranscription, cfg)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: audioMIMEType(audio), Data: audio},
		genai.Text(transcriptionPrompt(cfg.Language)))
	if err != nil {
		return nil, providerError(err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, core.NewProviderError(core.ProviderGemini, 0, err)
	}

	t.logger.Debug("Audio transcribed",
		zap.String("model", cfg.Model),
		zap.Int("audio_bytes", len(audio)))

	return &core.TranscriptionResult{
		Text:       strings.TrimSpace(text),
		Confidence: core.DefaultConfidence,
		Language:   cfg.Language,
		Provider:   string(core.ProviderGemini),
		Model:      cfg.Model,
	}, nil
}

func transcriptionPrompt(language string) string {
	prompt := "Transcribe the speech in this phone call audio. Respond with only the transcript text."
	if language != "" {
		prompt += fmt.Sprintf(" The caller is speaking language %q.", language)
	}
	return prompt
}

// audioMIMEType sniffs the container format, defaulting to wav
func audioMIMEType(audio []byte) string {
	switch ct := http.DetectContentType(audio); {
	case strings.HasPrefix(ct, "audio/"):
		return ct
	case ct == "application/ogg":
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}
