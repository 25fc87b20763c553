package core

import (
	"encoding/json"
	"strings"
	"time"
)

// ExtractJSONObject returns the span between the first '{' and the last '}'
// of a model response. Any commentary around the object is discarded.
func ExtractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// NormalizeAction maps a model-supplied action onto one of the four known
// recommendations. Anything unrecognised becomes take_message.
func NormalizeAction(s string) ActionRecommendation {
	switch ActionRecommendation(strings.ToLower(strings.TrimSpace(s))) {
	case ActionForward:
		return ActionForward
	case ActionTakeMessage:
		return ActionTakeMessage
	case ActionBlockCaller:
		return ActionBlockCaller
	case ActionOfferCallback:
		return ActionOfferCallback
	default:
		return ActionTakeMessage
	}
}

// NormalizeSentiment maps a model-supplied sentiment onto a known value
func NormalizeSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// ParseVerdict turns a raw model response into a verdict. It either returns a
// complete verdict or a MalformedResponseError, never a partial result.
func ParseVerdict(raw, source string) (*ScreeningVerdict, error) {
	span, ok := ExtractJSONObject(raw)
	if !ok {
		return nil, &MalformedResponseError{Reason: "no JSON object in response", Raw: raw}
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return nil, &MalformedResponseError{Reason: "invalid JSON", Raw: raw, Err: err}
	}

	intent, ok := fields["intent"].(string)
	if !ok || strings.TrimSpace(intent) == "" {
		return nil, &MalformedResponseError{Reason: "intent must be a non-empty string", Raw: raw}
	}
	confidence, ok := fields["confidence"].(float64)
	if !ok {
		return nil, &MalformedResponseError{Reason: "confidence must be a number", Raw: raw}
	}
	spam, ok := fields["spamLikelihood"].(float64)
	if !ok {
		return nil, &MalformedResponseError{Reason: "spamLikelihood must be a number", Raw: raw}
	}
	sentiment, ok := fields["sentiment"].(string)
	if !ok || strings.TrimSpace(sentiment) == "" {
		return nil, &MalformedResponseError{Reason: "sentiment is missing", Raw: raw}
	}
	action, ok := fields["actionRecommendation"].(string)
	if !ok || strings.TrimSpace(action) == "" {
		return nil, &MalformedResponseError{Reason: "actionRecommendation is missing", Raw: raw}
	}
	suggested, _ := fields["suggestedResponse"].(string)

	return &ScreeningVerdict{
		Intent:               strings.TrimSpace(intent),
		Confidence:           clamp01(confidence),
		SpamLikelihood:       clamp01(spam),
		Sentiment:            NormalizeSentiment(sentiment),
		SuggestedResponse:    strings.TrimSpace(suggested),
		ActionRecommendation: NormalizeAction(action),
		Source:               source,
		AnalyzedAt:           time.Now(),
	}, nil
}
