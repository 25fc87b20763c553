package openai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var _ core.Classifier = (*Classifier)(nil)

// Classifier is an implementation of core.Classifier using OpenAI chat completions
type Classifier struct {
	defaults   core.ProviderConfig
	reply      core.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// ClassifierOption configures a Classifier
type ClassifierOption func(*Classifier)

// WithReplyDefaults sets the tunables used by GenerateResponse
func WithReplyDefaults(temperature float32, maxTokens int) ClassifierOption {
	return func(c *Classifier) {
		c.reply.Temperature = core.Float32(temperature)
		if maxTokens > 0 {
			c.reply.MaxTokens = maxTokens
		}
	}
}

// WithHTTPClient sets the HTTP client used for upstream calls
func WithHTTPClient(hc *http.Client) ClassifierOption {
	return func(c *Classifier) {
		c.httpClient = hc
	}
}

// NewClassifier creates a new OpenAI classifier. configured is merged over the
// built-in defaults; per-call overrides are merged over the result.
func NewClassifier(configured core.ProviderConfig, logger *zap.Logger, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		defaults: core.DefaultClassificationConfig().Merge(configured),
		reply: core.ProviderConfig{
			Temperature: core.Float32(core.DefaultReplyTemperature),
			MaxTokens:   core.DefaultReplyMaxTokens,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider identifier
func (c *Classifier) Name() core.ProviderID { return core.ProviderOpenAI }

// Analyze classifies a call transcript
func (c *Classifier) Analyze(ctx context.Context, transcript string, override core.ProviderConfig) (*core.ScreeningVerdict, error) {
	cfg, err := core.Resolve(core.KindClassification, core.ProviderOpenAI, c.defaults, override)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: core.ClassificationSystemMessage,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: core.ClassificationPrompt(transcript),
			},
		},
		MaxTokens:   cfg.MaxTokens,
		Temperature: wireTemperature(cfg.TemperatureOr(0)),
	}

	content, err := c.complete(ctx, cfg, req)
	if err != nil {
		return nil, err
	}

	verdict, err := core.ParseVerdict(content, cfg.Model)
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
	cfg, err := core.Resolve(core.KindClassification, core.ProviderOpenAI, c.defaults.Merge(c.reply), override)
	if err != nil {
		return "", err
	}

	req := openai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: core.ReplySystemMessage,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   cfg.MaxTokens,
		Temperature: wireTemperature(cfg.TemperatureOr(core.DefaultReplyTemperature)),
	}

	content, err := c.complete(ctx, cfg, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Classifier) complete(ctx context.Context, cfg core.ProviderConfig, req openai.ChatCompletionRequest) (string, error) {
	resp, err := newClient(cfg, c.httpClient).CreateChatCompletion(ctx, req)
	if err != nil {
		return "", providerError(core.ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", &core.MalformedResponseError{Reason: "no choices in completion", Err: errors.New("empty response from OpenAI")}
	}

	c.logger.Debug("Chat completion finished",
		zap.String("model", cfg.Model),
		zap.String("id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return resp.Choices[0].Message.Content, nil
}

// wireTemperature keeps an explicit zero on the wire; the request field is
// omitempty and the API treats a missing temperature as 1.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
