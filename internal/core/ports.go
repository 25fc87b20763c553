package core

import (
	"context"
)

// Transcriber converts caller audio into text
type Transcriber interface {
	// Name returns the provider this transcriber talks to
	Name() ProviderID

	// Transcribe makes exactly one upstream call for the audio blob
	Transcribe(ctx context.Context, audio []byte, cfg ProviderConfig) (*TranscriptionResult, error)
}

// Synthesizer converts assistant text into playable audio
type Synthesizer interface {
	Name() ProviderID
	Synthesize(ctx context.Context, text string, cfg ProviderConfig) (*SynthesisResult, error)
}

// Classifier analyzes transcripts and writes spoken replies
type Classifier interface {
	Name() ProviderID

	// Analyze returns a complete verdict or an error
	Analyze(ctx context.Context, transcript string, cfg ProviderConfig) (*ScreeningVerdict, error)

	// GenerateResponse returns a short free-text reply to prompt
	GenerateResponse(ctx context.Context, prompt string, cfg ProviderConfig) (string, error)
}

// CallRepository stores records of resolved calls
type CallRepository interface {
	// Save stores or replaces a record
	Save(ctx context.Context, rec *CallRecord) error

	// Get retrieves a record by call id
	Get(ctx context.Context, id string) (*CallRecord, error)

	// List returns the most recent records, newest first
	List(ctx context.Context, limit int) ([]*CallRecord, error)

	// Delete removes a record
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired records
	Cleanup(ctx context.Context) error
}

// Notifier tells the user about a resolved call
type Notifier interface {
	NotifyResolved(ctx context.Context, session CallSession) error
}

// EventPublisher fans session changes out to UI subscribers
type EventPublisher interface {
	Publish(event SessionEvent)
}

// SessionEvent describes a change to a call session
type SessionEvent struct {
	Type    string      `json:"type"`
	Session CallSession `json:"session"`
}
