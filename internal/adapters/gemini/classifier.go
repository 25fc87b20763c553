package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-call-screener/internal/core"
	"go.uber.org/zap"
)

var _ core.Classifier = (*Classifier)(nil)

// Classifier is an implementation of core.Classifier using Google Gemini
type Classifier struct {
	defaults core.ProviderConfig
	reply    core.ProviderConfig
	logger   *zap.Logger
}

// NewClassifier creates a new Gemini classifier
func NewClassifier(configured core.ProviderConfig, replyTemperature float32, replyMaxTokens int, logger *zap.Logger) *Classifier {
	defaults := core.DefaultClassificationConfig()
	defaults.Provider = core.ProviderGemini
	defaults.Model = DefaultModel

	reply := core.ProviderConfig{Temperature: core.Float32(replyTemperature), MaxTokens: replyMaxTokens}
	if replyMaxTokens <= 0 {
		reply.MaxTokens = core.DefaultReplyMaxTokens
	}

	return &Classifier{
		defaults: defaults.Merge(configured),
		reply:    reply,
		logger:   logger,
	}
}

// Name returns the provider identifier
func (c *Classifier) Name() core.ProviderID { return core.ProviderGemini }

// Analyze classifies a call transcript. Gemini is asked for a JSON response
// body, and the reply still goes through the same brace-scanning parser.
func (c *Classifier) Analyze(ctx context.Context, transcript string, override core.ProviderConfig) (*core.ScreeningVerdict, error) {
	cfg, err := core.Resolve(core.KindClassification, core.ProviderGemini, c.defaults, override)
	if err != nil {
		return nil, err
	}

	text, err := c.generate(ctx, cfg, core.ClassificationSystemMessage, true, genai.Text(core.ClassificationPrompt(transcript)))
	if err != nil {
		return nil, err
	}

	verdict, err := core.ParseVerdict(text, cfg.Model)
	if err != nil {
		c.logger.Warn("Unusable classification response",
			zap.String("model", cfg.Model),
			zap.Error(err))
		return nil, err
	}
	return verdict, nil
}

// GenerateResponse writes a short spoken reply for prompt
func (c *Classifier) GenerateResponse(ctx context.Context, prompt string, override core.ProviderConfig) (string, error) {
	cfg, err := core.Resolve(core.KindClassification, core.ProviderGemini, c.defaults.Merge(c.reply), override)
	if err != nil {
		return "", err
	}

	text, err := c.generate(ctx, cfg, core.ReplySystemMessage, false, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Classifier) generate(ctx context.Context, cfg core.ProviderConfig, system string, jsonOutput bool, parts ...genai.Part) (string, error) {
	client, err := newClient(ctx, core.KindClassification, cfg)
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.TemperatureOr(0))
	if cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	}
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	if jsonOutput {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", providerError(err)
	}
	return responseText(resp)
}
