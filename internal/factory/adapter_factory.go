package factory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-call-screener/internal/adapters/bedrock"
	"github.com/mikey/llm-call-screener/internal/adapters/elevenlabs"
	"github.com/mikey/llm-call-screener/internal/adapters/gemini"
	"github.com/mikey/llm-call-screener/internal/adapters/openai"
	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/mikey/llm-call-screener/internal/utils"
	"go.uber.org/zap"
)

// upstreamTimeout caps a single HTTP exchange; the orchestrator applies its own
// shorter per-attempt deadline on top
const upstreamTimeout = 2 * time.Minute

// AdapterFactory creates the provider adapters selected in the configuration
type AdapterFactory struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpClient *http.Client
}

// NewAdapterFactory creates a new adapter factory
func NewAdapterFactory(cfg *config.Config, logger *zap.Logger) *AdapterFactory {
	return &AdapterFactory{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: upstreamTimeout},
	}
}

// CreateTranscriber creates the configured speech-to-text adapter
func (f *AdapterFactory) CreateTranscriber() (core.Transcriber, error) {
	tc := f.cfg.GetTranscription()
	logger := f.logger.With(zap.String("adapter", "transcription"))

	switch tc.Provider {
	case core.ProviderWhisper:
		return openai.NewTranscriber(tc, f.httpClient, logger), nil
	case core.ProviderGemini:
		return gemini.NewTranscriber(tc, logger), nil
	default:
		return nil, &core.UnsupportedProviderError{Kind: core.KindTranscription, Provider: tc.Provider}
	}
}

// CreateSynthesizer creates the configured text-to-speech adapter
func (f *AdapterFactory) CreateSynthesizer() (core.Synthesizer, error) {
	sc := f.cfg.GetSynthesis()
	logger := f.logger.With(zap.String("adapter", "synthesis"))

	switch sc.Provider {
	case core.ProviderElevenLabs:
		return elevenlabs.NewSynthesizer(sc, logger, elevenlabs.WithHTTPClient(f.httpClient)), nil
	case core.ProviderOpenAI:
		return openai.NewSynthesizer(sc, f.httpClient, logger), nil
	default:
		return nil, &core.UnsupportedProviderError{Kind: core.KindSynthesis, Provider: sc.Provider}
	}
}

// CreateClassifier creates the configured intent and risk classifier
func (f *AdapterFactory) CreateClassifier() (core.Classifier, error) {
	cc := f.cfg.GetClassification()
	logger := f.logger.With(zap.String("adapter", "classification"))

	switch cc.Provider.Provider {
	case core.ProviderOpenAI:
		return openai.NewClassifier(cc.Provider, logger,
			openai.WithReplyDefaults(cc.Reply.Temperature, cc.Reply.MaxTokens),
			openai.WithHTTPClient(f.httpClient),
		), nil
	case core.ProviderGemini:
		return gemini.NewClassifier(cc.Provider, cc.Reply.Temperature, cc.Reply.MaxTokens, logger), nil
	case core.ProviderBedrock:
		return f.createBedrockClassifier(cc, logger)
	default:
		return nil, &core.UnsupportedProviderError{Kind: core.KindClassification, Provider: cc.Provider.Provider}
	}
}

func (f *AdapterFactory) createBedrockClassifier(cc config.ClassificationConfig, logger *zap.Logger) (core.Classifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cc.BedrockRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)
	return bedrock.NewClassifier(client, awsCfg.Credentials != nil, cc.Provider, cc.Reply.Temperature, cc.Reply.MaxTokens, logger), nil
}

// CreateTextProcessor creates the transcript cleaner applied before classification
func (f *AdapterFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger.With(zap.String("adapter", "text")))
}
