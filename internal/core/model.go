package core

import (
	"strings"
	"time"
)

// CallState is the lifecycle state of a screened call
type CallState string

const (
	StateConnecting CallState = "connecting"
	StateScreening  CallState = "screening"
	StateSpeaking   CallState = "speaking"
	StateOptions    CallState = "options"
	StateResolved   CallState = "resolved"
)

// Sentiment is the caller sentiment reported by the classifier
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ActionRecommendation is the action the classifier suggests for a call
type ActionRecommendation string

const (
	ActionForward       ActionRecommendation = "forward"
	ActionTakeMessage   ActionRecommendation = "take_message"
	ActionBlockCaller   ActionRecommendation = "block_caller"
	ActionOfferCallback ActionRecommendation = "offer_callback"
)

// Decision is the choice the user makes once a call reaches the options state
type Decision string

const (
	DecisionAccept           Decision = "accept"
	DecisionDeclineMessage   Decision = "decline_with_message"
	DecisionScheduleCallback Decision = "schedule_callback"
)

// ParseDecision maps user input onto a known decision
func ParseDecision(s string) (Decision, bool) {
	switch Decision(strings.ToLower(strings.TrimSpace(s))) {
	case DecisionAccept:
		return DecisionAccept, true
	case DecisionDeclineMessage, "decline":
		return DecisionDeclineMessage, true
	case DecisionScheduleCallback, "callback":
		return DecisionScheduleCallback, true
	default:
		return "", false
	}
}

// TranscriptionResult is the output of a speech-to-text provider
type TranscriptionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
}

// SynthesisResult holds the audio returned by a text-to-speech provider.
// Audio is the provider's response body, untouched.
type SynthesisResult struct {
	Audio    []byte `json:"audio"`
	Format   string `json:"format"`
	Provider string `json:"provider"`
	VoiceID  string `json:"voice_id,omitempty"`
}

// ScreeningVerdict is the structured decision produced by the classifier
type ScreeningVerdict struct {
	Intent               string               `json:"intent"`
	Confidence           float64              `json:"confidence"`
	SpamLikelihood       float64              `json:"spamLikelihood"`
	Sentiment            Sentiment            `json:"sentiment"`
	SuggestedResponse    string               `json:"suggestedResponse,omitempty"`
	ActionRecommendation ActionRecommendation `json:"actionRecommendation"`
	Source               string               `json:"source"`
	AnalyzedAt           time.Time            `json:"analyzedAt"`
}

// IsLikelySpam reports whether the verdict crosses the spam threshold
func (v *ScreeningVerdict) IsLikelySpam(threshold float64) bool {
	return v != nil && v.SpamLikelihood > threshold
}

// SessionError is an adapter failure recorded against a call session
type SessionError struct {
	State      CallState `json:"state"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// CallSession is one screened call. The orchestrator owns the live value;
// everything outside it works on copies returned by Clone.
type CallSession struct {
	ID                  string            `json:"id"`
	CallerNumber        string            `json:"callerNumber"`
	CallerName          string            `json:"callerName,omitempty"`
	CalleeName          string            `json:"calleeName,omitempty"`
	StartedAt           time.Time         `json:"startedAt"`
	State               CallState         `json:"state"`
	Transcript          []string          `json:"transcript"`
	Verdict             *ScreeningVerdict `json:"verdict,omitempty"`
	Trusted             bool              `json:"trusted"`
	NeedsManualDecision bool              `json:"needsManualDecision"`
	ManualReason        string            `json:"manualReason,omitempty"`
	SpamHint            bool              `json:"spamHint,omitempty"`
	Errors              []SessionError    `json:"errors,omitempty"`
	Decision            Decision          `json:"decision,omitempty"`
	ResolvedAt          *time.Time        `json:"resolvedAt,omitempty"`
}

// FullTranscript joins the accumulated transcript chunks
func (s *CallSession) FullTranscript() string {
	return strings.Join(s.Transcript, " ")
}

// Clone returns a deep copy of the session
func (s *CallSession) Clone() CallSession {
	c := *s
	c.Transcript = append([]string(nil), s.Transcript...)
	c.Errors = append([]SessionError(nil), s.Errors...)
	if s.Verdict != nil {
		v := *s.Verdict
		c.Verdict = &v
	}
	if s.ResolvedAt != nil {
		t := *s.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}

// CallRecord is the persisted summary of a resolved call
type CallRecord struct {
	ID             string    `json:"id"`
	CallerNumber   string    `json:"callerNumber"`
	CallerName     string    `json:"callerName,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	EndedAt        time.Time `json:"endedAt"`
	Transcript     string    `json:"transcript"`
	Intent         string    `json:"intent,omitempty"`
	SpamLikelihood float64   `json:"spamLikelihood"`
	LikelySpam     bool      `json:"likelySpam"`
	Action         string    `json:"action,omitempty"`
	Decision       Decision  `json:"decision"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// NewCallRecord summarises a resolved session for persistence
func NewCallRecord(s *CallSession, spamThreshold float64, retention time.Duration) *CallRecord {
	now := time.Now()
	if s.ResolvedAt != nil {
		now = *s.ResolvedAt
	}
	rec := &CallRecord{
		ID:           s.ID,
		CallerNumber: s.CallerNumber,
		CallerName:   s.CallerName,
		StartedAt:    s.StartedAt,
		EndedAt:      now,
		Transcript:   s.FullTranscript(),
		Decision:     s.Decision,
		LikelySpam:   s.SpamHint,
		ExpiresAt:    now.Add(retention),
	}
	if s.Verdict != nil {
		rec.Intent = s.Verdict.Intent
		rec.SpamLikelihood = s.Verdict.SpamLikelihood
		rec.LikelySpam = s.Verdict.IsLikelySpam(spamThreshold)
		rec.Action = string(s.Verdict.ActionRecommendation)
	}
	return rec
}
