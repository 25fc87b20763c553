package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-call-screener/internal/core"
	"go.uber.org/zap"
)

// DefaultModel is used when no model is configured
const DefaultModel = "anthropic.claude-3-haiku-20240307-v1:0"

const anthropicVersion = "bedrock-2023-05-31"

// InvokeModelAPI is the part of the Bedrock runtime client the classifier uses
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

var _ core.Classifier = (*Classifier)(nil)

// Classifier is an implementation of core.Classifier using Amazon Bedrock.
// Credentials come from the AWS chain the client was built with unless a call
// supplies "ACCESS_KEY_ID:SECRET_ACCESS_KEY" as its credential.
type Classifier struct {
	client         InvokeModelAPI
	hasCredentials bool
	defaults       core.ProviderConfig
	reply          core.ProviderConfig
	logger         *zap.Logger
}

// NewClassifier creates a new Bedrock classifier
func NewClassifier(client InvokeModelAPI, hasCredentials bool, configured core.ProviderConfig, replyTemperature float32, replyMaxTokens int, logger *zap.Logger) *Classifier {
	defaults := core.DefaultClassificationConfig()
	defaults.Provider = core.ProviderBedrock
	defaults.Model = DefaultModel

	reply := core.ProviderConfig{Temperature: core.Float32(replyTemperature), MaxTokens: replyMaxTokens}
	if replyMaxTokens <= 0 {
		reply.MaxTokens = core.DefaultReplyMaxTokens
	}

	return &Classifier{
		client:         client,
		hasCredentials: hasCredentials,
		defaults:       defaults.Merge(configured),
		reply:          reply,
		logger:         logger,
	}
}

// Name returns the provider identifier
func (c *Classifier) Name() core.ProviderID { return core.ProviderBedrock }

// Analyze classifies a call transcript
func (c *Classifier) Analyze(ctx context.Context, transcript string, override core.ProviderConfig) (*core.ScreeningVerdict, error) {
	cfg, optFns, err := c.resolve(c.defaults, override)
	if err != nil {
		return nil, err
	}

	text, err := c.invoke(ctx, cfg, core.ClassificationSystemMessage, core.ClassificationPrompt(transcript), optFns)
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
	cfg, optFns, err := c.resolve(c.defaults.Merge(c.reply), override)
	if err != nil {
		return "", err
	}

	text, err := c.invoke(ctx, cfg, core.ReplySystemMessage, prompt, optFns)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Classifier) resolve(defaults, override core.ProviderConfig) (core.ProviderConfig, []func(*bedrockruntime.Options), error) {
	cfg := defaults.Merge(override)
	if err := core.CheckProvider(core.KindClassification, core.ProviderBedrock, cfg); err != nil {
		return cfg, nil, err
	}

	if cfg.Credential == "" {
		if !c.hasCredentials {
			return cfg, nil, &core.ConfigurationError{Kind: core.KindClassification, Provider: core.ProviderBedrock, Reason: "no AWS credentials available"}
		}
		return cfg, nil, nil
	}

	keyID, secret, ok := strings.Cut(cfg.Credential, ":")
	if !ok || keyID == "" || secret == "" {
		return cfg, nil, &core.ConfigurationError{Kind: core.KindClassification, Provider: core.ProviderBedrock, Reason: "credential must be ACCESS_KEY_ID:SECRET_ACCESS_KEY"}
	}
	static := credentials.NewStaticCredentialsProvider(keyID, secret, "")
	return cfg, []func(*bedrockruntime.Options){
		func(o *bedrockruntime.Options) { o.Credentials = static },
	}, nil
}

func (c *Classifier) invoke(ctx context.Context, cfg core.ProviderConfig, system, prompt string, optFns []func(*bedrockruntime.Options)) (string, error) {
	payload, err := requestBody(cfg, system, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(cfg.Model),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	}, optFns...)
	if err != nil {
		return "", providerError(err)
	}

	return responseText(cfg.Model, resp.Body)
}

func isAnthropicModel(model string) bool {
	return strings.HasPrefix(model, "anthropic.claude")
}

func isAmazonTitanModel(model string) bool {
	return strings.HasPrefix(model, "amazon.titan")
}

func requestBody(cfg core.ProviderConfig, system, prompt string) ([]byte, error) {
	temperature := cfg.TemperatureOr(0)

	switch {
	case isAnthropicModel(cfg.Model):
		return json.Marshal(map[string]any{
			"anthropic_version": anthropicVersion,
			"max_tokens":        cfg.MaxTokens,
			"temperature":       temperature,
			"system":            system,
			"messages": []map[string]any{{
				"role":    "user",
				"content": []map[string]string{{"type": "text", "text": prompt}},
			}},
		})
	case isAmazonTitanModel(cfg.Model):
		return json.Marshal(map[string]any{
			"inputText": system + "\n\n" + prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": cfg.MaxTokens,
				"temperature":   temperature,
			},
		})
	default:
		return json.Marshal(map[string]any{
			"prompt":      system + "\n\n" + prompt,
			"max_tokens":  cfg.MaxTokens,
			"temperature": temperature,
		})
	}
}

func responseText(model string, body []byte) (string, error) {
	switch {
	case isAnthropicModel(model):
		var resp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", &core.MalformedResponseError{Reason: "invalid Claude response", Err: err}
		}
		var b strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		if b.Len() == 0 {
			return "", &core.MalformedResponseError{Reason: "empty response from Claude model"}
		}
		return b.String(), nil
	case isAmazonTitanModel(model):
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", &core.MalformedResponseError{Reason: "invalid Titan response", Err: err}
		}
		if len(resp.Results) == 0 {
			return "", &core.MalformedResponseError{Reason: "empty response from Titan model"}
		}
		return resp.Results[0].OutputText, nil
	default:
		var resp struct {
			Output     string `json:"output"`
			Text       string `json:"text"`
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return string(body), nil
		}
		for _, s := range []string{resp.Output, resp.Text, resp.Generation} {
			if s != "" {
				return s, nil
			}
		}
		return string(body), nil
	}
}

// providerError maps AWS SDK failures onto core.ProviderError
func providerError(err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return core.NewProviderError(core.ProviderBedrock, respErr.HTTPStatusCode(), err)
	}
	return core.NewProviderError(core.ProviderBedrock, 0, err)
}
