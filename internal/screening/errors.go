package screening

import (
	"errors"
	"fmt"

	"github.com/mikey/llm-call-screener/internal/core"
)

var (
	// ErrSessionNotFound is returned for unknown or already finished calls
	ErrSessionNotFound = errors.New("call session not found")

	// ErrSessionAbandoned is returned when a result arrives for a call that
	// was abandoned while the adapter call was in flight
	ErrSessionAbandoned = errors.New("call session was abandoned")

	// ErrUnknownDecision is returned by Decide for decisions outside the known set
	ErrUnknownDecision = errors.New("unknown decision")

	// ErrMissingCaller is returned by StartCall when no caller number is given
	ErrMissingCaller = errors.New("caller number is required")
)

// InvalidTransitionError is returned when an event does not apply to the
// session's current state
type InvalidTransitionError struct {
	SessionID string
	State     core.CallState
	Event     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s call %s in state %s", e.Event, e.SessionID, e.State)
}

// Reasons surfaced to the user when no verdict is available
const (
	ReasonScreeningUnavailable = "screening unavailable"
	ReasonAnalysisUnavailable  = "analysis unavailable, please decide manually"
	ReasonMisconfigured        = "screening misconfigured"
	ReasonNoSpeech             = "no caller speech captured, please decide manually"
)

// manualReason maps an adapter failure onto the message shown to the user
func manualReason(err error) string {
	switch core.ErrorKind(err) {
	case "malformed_response":
		return ReasonAnalysisUnavailable
	case "configuration", "unsupported_provider":
		return ReasonMisconfigured
	default:
		return ReasonScreeningUnavailable
	}
}
