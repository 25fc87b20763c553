package openai

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTranscriber_Transcribe(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt fake audio")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, audioFileName, header.Filename)
		got, _ := io.ReadAll(file)
		assert.Equal(t, audio, got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" Hi, this is Sarah from marketing. "}`))
	}))
	defer srv.Close()

	tr := NewTranscriber(testConfig(srv), nil, zap.NewNop())
	res, err := tr.Transcribe(t.Context(), audio, core.ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, "Hi, this is Sarah from marketing.", res.Text)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, "whisper", res.Provider)
}

func TestTranscriber_NoCredentialMakesNoCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	tr := NewTranscriber(core.ProviderConfig{BaseURL: srv.URL + "/v1"}, nil, zap.NewNop())
	_, err := tr.Transcribe(t.Context(), []byte("audio"), core.ProviderConfig{})

	var ce *core.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.KindTranscription, ce.Kind)
	assert.Equal(t, int32(0), hits.Load())
}

func TestTranscriber_UnimplementedProvider(t *testing.T) {
	tr := NewTranscriber(core.ProviderConfig{Credential: "k"}, nil, zap.NewNop())
	_, err := tr.Transcribe(t.Context(), []byte("audio"), core.ProviderConfig{Provider: core.ProviderGoogle})

	var ue *core.UnsupportedProviderError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, core.ProviderGoogle, ue.Provider)
}

func TestTranscriber_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	tr := NewTranscriber(testConfig(srv), nil, zap.NewNop())
	_, err := tr.Transcribe(t.Context(), []byte("audio"), core.ProviderConfig{})

	var pe *core.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
}
