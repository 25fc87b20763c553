package ports

import (
	"context"

	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/mikey/llm-call-screener/internal/screening"
)

// CallGateway is the surface the UI and telephony collaborators talk to
type CallGateway interface {
	// Start starts serving in the background
	Start() error

	// Stop stops the gateway
	Stop() error
}

// ScreeningService drives call sessions through the screening state machine
type ScreeningService interface {
	StartCall(ctx context.Context, call screening.IncomingCall) (core.CallSession, error)
	Answer(ctx context.Context, id string) (*screening.SpokenLine, core.CallSession, error)
	SubmitAudio(ctx context.Context, id string, seg screening.AudioSegment) (*screening.SpokenLine, core.CallSession, error)
	SubmitTranscript(ctx context.Context, id, text string, final bool) (*screening.SpokenLine, core.CallSession, error)
	Decide(ctx context.Context, id string, d core.Decision) (*screening.SpokenLine, core.CallSession, error)
	Abandon(ctx context.Context, id string) error
	Session(id string) (core.CallSession, error)
	ActiveSessions() []core.CallSession
	History(ctx context.Context, limit int) ([]*core.CallRecord, error)
}

var _ ScreeningService = (*screening.Orchestrator)(nil)
