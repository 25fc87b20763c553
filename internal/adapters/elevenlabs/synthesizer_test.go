package elevenlabs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSynthesize(t *testing.T) {
	audio := []byte{0x49, 0x44, 0x33, 0x04, 0x00, 0xff}
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/EXAVITQu4vr4xnSDxMaL", r.URL.Path)
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	s := NewSynthesizer(core.ProviderConfig{Credential: "xi-key", BaseURL: srv.URL}, zap.NewNop(), WithHTTPClient(srv.Client()))

	res, err := s.Synthesize(t.Context(), "Connecting you now.", core.ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, audio, res.Audio)
	assert.Equal(t, "mp3", res.Format)
	assert.Equal(t, "Connecting you now.", got.Text)
	assert.Equal(t, "eleven_monolingual_v1", got.ModelID)
	assert.InDelta(t, 0.5, got.VoiceSettings.Stability, 1e-9)
	assert.InDelta(t, 0.5, got.VoiceSettings.SimilarityBoost, 1e-9)

	_, err = s.Synthesize(t.Context(), "again", core.ProviderConfig{Stability: core.Float64(0.8), Similarity: core.Float64(0)})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.VoiceSettings.Stability, 1e-9)
	assert.InDelta(t, 0.0, got.VoiceSettings.SimilarityBoost, 1e-9)
}

func TestSynthesize_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"quota exceeded"}`))
	}))
	defer srv.Close()

	s := NewSynthesizer(core.ProviderConfig{Credential: "xi-key", BaseURL: srv.URL}, zap.NewNop())
	_, err := s.Synthesize(t.Context(), "hello", core.ProviderConfig{})

	var pe *core.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Contains(t, pe.Error(), "quota exceeded")
}

func TestSynthesize_Configuration(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	s := NewSynthesizer(core.ProviderConfig{BaseURL: srv.URL}, zap.NewNop())

	_, err := s.Synthesize(t.Context(), "hello", core.ProviderConfig{})
	var ce *core.ConfigurationError
	assert.ErrorAs(t, err, &ce)

	_, err = s.Synthesize(t.Context(), "hello", core.ProviderConfig{Provider: core.ProviderAWSPolly, Credential: "k"})
	var ue *core.UnsupportedProviderError
	assert.ErrorAs(t, err, &ue)
	assert.Equal(t, int32(0), hits.Load())
}
