package core

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing credential or unusable setting.
// It is fatal to the single call and never retried.
type ConfigurationError struct {
	Kind     ProviderKind
	Provider ProviderID
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s provider %q misconfigured: %s", e.Kind, e.Provider, e.Reason)
}

// UnsupportedProviderError reports a backend that is unknown or not implemented
type UnsupportedProviderError struct {
	Kind     ProviderKind
	Provider ProviderID
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported %s provider: %s", e.Kind, e.Provider)
}

// ProviderError reports a failed upstream call: transport error, timeout or
// non-2xx response. The orchestrator may retry it.
type ProviderError struct {
	Provider   ProviderID
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MalformedResponseError reports an upstream response that could not be
// turned into a complete verdict
type MalformedResponseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// NewProviderError wraps err unless it already is a ProviderError
func NewProviderError(provider ProviderID, status int, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, StatusCode: status, Err: err}
}

// IsRetriable reports whether err may succeed when the same call is repeated
func IsRetriable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// ErrorKind returns a short label for err used in logs, metrics and session records
func ErrorKind(err error) string {
	var (
		ce *ConfigurationError
		ue *UnsupportedProviderError
		pe *ProviderError
		me *MalformedResponseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ce):
		return "configuration"
	case errors.As(err, &ue):
		return "unsupported_provider"
	case errors.As(err, &pe):
		return "provider"
	case errors.As(err, &me):
		return "malformed_response"
	default:
		return "internal"
	}
}

// ErrRecordNotFound is returned by repositories when no record matches
var ErrRecordNotFound = errors.New("call record not found")
