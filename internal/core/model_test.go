package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestProviderConfigMerge(t *testing.T) {
	def := DefaultSynthesisConfig()

	t.Run("empty override keeps defaults", func(t *testing.T) {
		got := def.Merge(ProviderConfig{})
		assert.Equal(t, def, got)
		assert.InDelta(t, 0.5, got.StabilityOr(0), 1e-9)
		assert.InDelta(t, 0.5, got.SimilarityOr(0), 1e-9)
	})

	t.Run("explicit zero wins", func(t *testing.T) {
		got := def.Merge(ProviderConfig{Stability: Float64(0), Credential: "key"})
		assert.InDelta(t, 0.0, got.StabilityOr(1), 1e-9)
		assert.InDelta(t, 0.5, got.SimilarityOr(1), 1e-9)
		assert.Equal(t, "key", got.Credential)
	})

	t.Run("defaults are not mutated", func(t *testing.T) {
		override := ProviderConfig{Stability: Float64(0.9)}
		got := def.Merge(override)
		*override.Stability = 0.1
		assert.InDelta(t, 0.9, got.StabilityOr(0), 1e-9)
		assert.InDelta(t, 0.5, DefaultSynthesisConfig().StabilityOr(0), 1e-9)
	})
}

func TestProviderConfigMerge_OverrideAlwaysWins(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := ProviderConfig{
			Provider: ProviderID(rapid.StringMatching(`[a-z]{0,6}`).Draw(rt, "baseProvider")),
			Model:    rapid.StringMatching(`[a-z0-9-]{0,8}`).Draw(rt, "baseModel"),
			Language: rapid.StringMatching(`[a-z]{0,2}`).Draw(rt, "baseLang"),
		}
		override := ProviderConfig{
			Model:       rapid.StringMatching(`[a-z0-9-]{0,8}`).Draw(rt, "model"),
			Temperature: Float32(float32(rapid.Float64Range(0, 2).Draw(rt, "temp"))),
		}
		got := base.Merge(override)

		if override.Model != "" {
			assert.Equal(rt, override.Model, got.Model)
		} else {
			assert.Equal(rt, base.Model, got.Model)
		}
		assert.Equal(rt, base.Provider, got.Provider)
		assert.Equal(rt, base.Language, got.Language)
		assert.Equal(rt, *override.Temperature, got.TemperatureOr(-1))
	})
}

func TestParseDecision(t *testing.T) {
	tests := map[string]Decision{
		"accept":               DecisionAccept,
		" ACCEPT ":             DecisionAccept,
		"decline":              DecisionDeclineMessage,
		"decline_with_message": DecisionDeclineMessage,
		"callback":             DecisionScheduleCallback,
		"schedule_callback":    DecisionScheduleCallback,
	}
	for in, want := range tests {
		got, ok := ParseDecision(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseDecision("hang_up")
	assert.False(t, ok)
}

func TestErrorKind(t *testing.T) {
	pe := NewProviderError(ProviderOpenAI, 503, errors.New("unavailable"))
	wrapped := fmt.Errorf("failed to classify: %w", pe)

	assert.Equal(t, "provider", ErrorKind(wrapped))
	assert.True(t, IsRetriable(wrapped))
	assert.Same(t, pe, NewProviderError(ProviderOpenAI, 0, pe))
	assert.Contains(t, pe.Error(), "503")

	assert.Equal(t, "configuration", ErrorKind(&ConfigurationError{Kind: KindTranscription, Provider: ProviderWhisper, Reason: "missing credential"}))
	assert.Equal(t, "unsupported_provider", ErrorKind(&UnsupportedProviderError{Kind: KindSynthesis, Provider: ProviderAWSPolly}))
	assert.Equal(t, "internal", ErrorKind(context.Canceled))
	assert.Empty(t, ErrorKind(nil))
	assert.False(t, IsRetriable(&ConfigurationError{}))
}

func TestNewCallRecord(t *testing.T) {
	resolved := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &CallSession{
		ID:           "call-1",
		CallerNumber: "+15551234567",
		StartedAt:    resolved.Add(-time.Minute),
		Transcript:   []string{"Hi,", "this is Sarah."},
		Verdict: &ScreeningVerdict{
			Intent:               "Business inquiry",
			SpamLikelihood:       0.75,
			ActionRecommendation: ActionOfferCallback,
		},
		Decision:   DecisionScheduleCallback,
		ResolvedAt: &resolved,
	}

	rec := NewCallRecord(s, 0.7, 24*time.Hour)
	require.NotNil(t, rec)
	assert.Equal(t, "Hi, this is Sarah.", rec.Transcript)
	assert.True(t, rec.LikelySpam)
	assert.Equal(t, "offer_callback", rec.Action)
	assert.Equal(t, resolved, rec.EndedAt)
	assert.Equal(t, resolved.Add(24*time.Hour), rec.ExpiresAt)
}

func TestCallSessionClone(t *testing.T) {
	s := &CallSession{Transcript: []string{"a"}, Verdict: &ScreeningVerdict{Intent: "x"}}
	c := s.Clone()
	c.Transcript[0] = "b"
	c.Verdict.Intent = "y"
	assert.Equal(t, "a", s.Transcript[0])
	assert.Equal(t, "x", s.Verdict.Intent)
}

func TestGreeting(t *testing.T) {
	assert.Equal(t,
		"Hello, this is Luci, an AI assistant for Alex. May I ask who's calling and the purpose of your call?",
		Greeting("Luci", "Alex"))
	assert.Contains(t, Greeting("Luci", ""), GenericCalleeName)
	assert.Equal(t, "Connecting you now.", DecisionLine(DecisionAccept))
	assert.Empty(t, DecisionLine("bogus"))
}

func TestResolve(t *testing.T) {
	defaults := DefaultTranscriptionConfig()

	_, err := Resolve(KindTranscription, ProviderWhisper, defaults, ProviderConfig{})
	var ce *ConfigurationError
	assert.ErrorAs(t, err, &ce)

	_, err = Resolve(KindTranscription, ProviderWhisper, defaults, ProviderConfig{Provider: ProviderGoogle, Credential: "k"})
	var ue *UnsupportedProviderError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ProviderGoogle, ue.Provider)

	cfg, err := Resolve(KindTranscription, ProviderWhisper, defaults, ProviderConfig{Credential: "k", Language: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.Language)
	assert.Equal(t, "whisper-1", cfg.Model)
}
