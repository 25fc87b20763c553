package openai

import (
	"errors"
	"net/http"

	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/sashabaranov/go-openai"
)

// newClient builds a client for one resolved configuration. Building per call
// lets a caller override the credential or endpoint of a single request.
func newClient(cfg core.ProviderConfig, httpClient *http.Client) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.Credential)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(clientCfg)
}

// providerError maps go-openai failures onto core.ProviderError, keeping the
// HTTP status when the library reports one
func providerError(provider core.ProviderID, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return core.NewProviderError(provider, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return core.NewProviderError(provider, reqErr.HTTPStatusCode, err)
	}
	return core.NewProviderError(provider, 0, err)
}
