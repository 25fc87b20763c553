package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-call-screener/internal/core"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-1.5-flash"

// newClient opens a client for one resolved configuration. Callers must Close it.
func newClient(ctx context.Context, kind core.ProviderKind, cfg core.ProviderConfig) (*genai.Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.Credential)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, &core.ConfigurationError{Kind: kind, Provider: core.ProviderGemini, Reason: fmt.Sprintf("failed to create Gemini client: %v", err)}
	}
	return client, nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &core.MalformedResponseError{Reason: "empty response from Gemini"}
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", &core.MalformedResponseError{Reason: "no text parts in Gemini response"}
	}
	return b.String(), nil
}

// providerError maps Gemini API failures onto core.ProviderError
func providerError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return core.NewProviderError(core.ProviderGemini, gerr.Code, err)
	}
	return core.NewProviderError(core.ProviderGemini, 0, err)
}
