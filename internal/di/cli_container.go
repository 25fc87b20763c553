package di

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-call-screener/internal/allowlist"
	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/mikey/llm-call-screener/internal/logging"
	"github.com/mikey/llm-call-screener/internal/metrics"
	"github.com/mikey/llm-call-screener/internal/screening"
	"github.com/mikey/llm-call-screener/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Provider flags
	TranscriptionProvider  string
	SynthesisProvider      string
	ClassificationProvider string
	ClassificationModel    string
	Language               string

	// Credentials
	OpenAIAPIKey     string
	GeminiAPIKey     string
	ElevenLabsAPIKey string
	BedrockRegion    string

	// Screening flags
	CallerNumber  string
	CalleeName    string
	SpamThreshold float64
	Trusted       string

	// Input flags
	Files       []string
	Transcript  string
	Speak       bool
	OutputDir   string
	Concurrency int
	Verbose     bool
	JSONLog     bool
	ConfigFile  string
}

// ParseFlags parses command line flags and returns a CLIFlags struct.
// Positional arguments are audio files to screen.
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	flag.StringVar(&flags.TranscriptionProvider, "transcription-provider", "whisper", "Speech-to-text provider (whisper, gemini)")
	flag.StringVar(&flags.SynthesisProvider, "synthesis-provider", "elevenlabs", "Text-to-speech provider (elevenlabs, openai)")
	flag.StringVar(&flags.ClassificationProvider, "classification-provider", "openai", "Classifier provider (openai, gemini, bedrock)")
	flag.StringVar(&flags.ClassificationModel, "classification-model", "", "Classifier model (provider default if empty)")
	flag.StringVar(&flags.Language, "language", "en", "Caller language hint")

	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	flag.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	flag.StringVar(&flags.ElevenLabsAPIKey, "elevenlabs-api-key", "", "API key for ElevenLabs")
	flag.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")

	flag.StringVar(&flags.CallerNumber, "caller", "unknown", "Caller number reported for every input")
	flag.StringVar(&flags.CalleeName, "callee", "", "Name of the person being called")
	flag.Float64Var(&flags.SpamThreshold, "threshold", 0.7, "Spam likelihood at which a call is flagged")
	flag.StringVar(&flags.Trusted, "trusted", "", "Comma-separated trusted numbers or prefixes ending in *")

	flag.StringVar(&flags.Transcript, "transcript", "", "Screen this text instead of audio files")
	flag.BoolVar(&flags.Speak, "speak", false, "Synthesize the assistant's replies")
	flag.StringVar(&flags.OutputDir, "output-dir", ".", "Directory for synthesized replies when -speak is set")
	flag.IntVar(&flags.Concurrency, "concurrency", 4, "Number of inputs screened at once")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	flags.Files = flag.Args()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			v := config.NewEmptyViper()
			v.SetConfigFile(flags.ConfigFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			logger.Info("Loaded configuration from file", zap.String("file", v.ConfigFileUsed()))
			return config.NewFromViper(v), nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Replies are only voiced on request
	if flags.Speak {
		if err := provideSynthesizer(container); err != nil {
			return nil, err
		}
	} else if err := container.Provide(func() core.Synthesizer { return textOnly{} }); err != nil {
		return nil, err
	}

	// Register orchestrator without storage or notifications
	if err := container.Provide(func(
		cfg *config.Config,
		transcriber core.Transcriber,
		synthesizer core.Synthesizer,
		classifier core.Classifier,
		checker *allowlist.Checker,
		text *utils.TextProcessor,
		collector *metrics.Collector,
		logger *zap.Logger,
	) (*screening.Orchestrator, error) {
		sc, err := cfg.GetScreening()
		if err != nil {
			return nil, err
		}
		return screening.NewOrchestrator(screening.Deps{
			Transcriber: transcriber,
			Synthesizer: synthesizer,
			Classifier:  classifier,
			Allowlist:   checker,
			Text:        text,
			Metrics:     collector,
		}, sc, cfg.GetClassification().MaxTranscriptSize, 0, logger), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("transcription.provider", flags.TranscriptionProvider)
	v.Set("transcription.api_key", flags.OpenAIAPIKey)
	v.Set("transcription.language", flags.Language)

	v.Set("synthesis.provider", flags.SynthesisProvider)
	switch core.NormalizeProvider(flags.SynthesisProvider) {
	case core.ProviderElevenLabs:
		v.Set("synthesis.api_key", flags.ElevenLabsAPIKey)
	case core.ProviderOpenAI:
		v.Set("synthesis.api_key", flags.OpenAIAPIKey)
	}

	v.Set("classification.provider", flags.ClassificationProvider)
	v.Set("classification.api_key", flags.OpenAIAPIKey)
	v.Set("classification.model", flags.ClassificationModel)

	v.Set("gemini.api_key", flags.GeminiAPIKey)
	v.Set("bedrock.region", flags.BedrockRegion)

	v.Set("screening.callee_name", flags.CalleeName)
	v.Set("screening.spam_threshold", flags.SpamThreshold)
	v.Set("screening.trusted_numbers", splitList(flags.Trusted))
	v.Set("screening.acknowledge_caller", flags.Speak)

	v.Set("repository.type", "memory")
	v.Set("notify.enabled", false)

	return config.NewFromViper(v)
}

// textOnly stands in for a synthesizer when replies are printed, not voiced
type textOnly struct{}

func (textOnly) Name() core.ProviderID { return "text" }

func (textOnly) Synthesize(_ context.Context, _ string, _ core.ProviderConfig) (*core.SynthesisResult, error) {
	return &core.SynthesisResult{Format: "text", Provider: "text"}, nil
}

// splitList turns a comma-separated flag into trimmed, non-empty entries
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
