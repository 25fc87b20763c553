package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mikey/llm-call-screener/internal/adapters/repository"
	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/mikey/llm-call-screener/internal/metrics"
	"github.com/mikey/llm-call-screener/internal/screening"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoTranscriber struct{}

func (echoTranscriber) Name() core.ProviderID { return core.ProviderWhisper }

func (echoTranscriber) Transcribe(_ context.Context, audio []byte, _ core.ProviderConfig) (*core.TranscriptionResult, error) {
	return &core.TranscriptionResult{Text: string(audio), Confidence: core.DefaultConfidence}, nil
}

type fakeSynthesizer struct{}

func (fakeSynthesizer) Name() core.ProviderID { return core.ProviderElevenLabs }

func (fakeSynthesizer) Synthesize(_ context.Context, text string, _ core.ProviderConfig) (*core.SynthesisResult, error) {
	return &core.SynthesisResult{Audio: []byte(text), Format: "mp3", Provider: "elevenlabs"}, nil
}

type fixedClassifier struct{}

func (fixedClassifier) Name() core.ProviderID { return core.ProviderOpenAI }

func (fixedClassifier) Analyze(_ context.Context, _ string, _ core.ProviderConfig) (*core.ScreeningVerdict, error) {
	return core.ParseVerdict(`{"intent":"Business inquiry","confidence":0.82,"spamLikelihood":0.05,"sentiment":"neutral","suggestedResponse":"Thanks, one moment.","actionRecommendation":"offer_callback"}`, "stub")
}

func (fixedClassifier) GenerateResponse(context.Context, string, core.ProviderConfig) (string, error) {
	return "Thanks.", nil
}

func newTestServer(t *testing.T, mutate ...func(*config.ServerConfig)) (*Server, *screening.Orchestrator) {
	t.Helper()
	logger := zap.NewNop()
	collector := metrics.NewCollector(logger)
	hub := NewHub(logger)
	repo := repository.NewMemoryRepository(logger, 0)

	orch := screening.NewOrchestrator(screening.Deps{
		Transcriber: echoTranscriber{},
		Synthesizer: fakeSynthesizer{},
		Classifier:  fixedClassifier{},
		Repository:  repo,
		Events:      hub,
		Metrics:     collector,
	}, config.ScreeningConfig{
		AssistantName:     "Luci",
		AdapterTimeout:    time.Second,
		MaxAttempts:       1,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		SpamThreshold:     0.7,
		AcknowledgeCaller: true,
	}, 4096, time.Hour, logger)

	cfg := config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		RateLimit:       1000,
		RateBurst:       1000,
		MaxAudioSize:    1024,
		ShutdownTimeout: time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	srv := NewServer(orch, hub, collector, cfg, 50, logger)
	t.Cleanup(func() {
		srv.Stop()
		orch.Close()
		repo.Stop()
	})
	return srv, orch
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func jsonBody(t *testing.T, v any) io.Reader {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func sessionField(resp map[string]any, key string) any {
	session, _ := resp["session"].(map[string]any)
	return session[key]
}

func TestServer_CallFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec, resp := do(t, h, http.MethodPost, "/api/calls", jsonBody(t, map[string]string{
		"callerNumber": "+15551234567",
		"calleeName":   "Alex",
	}))
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := sessionField(resp, "id").(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "connecting", sessionField(resp, "state"))

	rec, resp = do(t, h, http.MethodPost, "/api/calls/"+id+"/answer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	line := resp["line"].(map[string]any)
	assert.Equal(t, core.Greeting("Luci", "Alex"), line["text"])
	assert.Equal(t, "screening", sessionField(resp, "state"))

	rec, resp = do(t, h, http.MethodPost, "/api/calls/"+id+"/audio?final=false", strings.NewReader("Hi, this is Sarah"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "screening", sessionField(resp, "state"))

	rec, resp = do(t, h, http.MethodPost, "/api/calls/"+id+"/transcript", jsonBody(t, transcriptRequest{Text: "from marketing.", Final: true}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "options", sessionField(resp, "state"))
	verdict := sessionField(resp, "verdict").(map[string]any)
	assert.Equal(t, "offer_callback", verdict["actionRecommendation"])
	assert.Equal(t, "Thanks, one moment.", resp["line"].(map[string]any)["text"])

	rec, resp = do(t, h, http.MethodGet, "/api/calls", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["sessions"], 1)

	rec, resp = do(t, h, http.MethodPost, "/api/calls/"+id+"/decision", jsonBody(t, decisionRequest{Decision: "callback"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "resolved", sessionField(resp, "state"))
	assert.Equal(t, "schedule_callback", sessionField(resp, "decision"))

	rec, _ = do(t, h, http.MethodGet, "/api/calls/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = do(t, h, http.MethodGet, "/api/calls/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	calls := resp["calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "Hi, this is Sarah from marketing.", calls[0].(map[string]any)["transcript"])
}

func TestServer_Errors(t *testing.T) {
	srv, orch := newTestServer(t)
	h := srv.Handler()

	session, err := orch.StartCall(t.Context(), screening.IncomingCall{CallerNumber: "+15551234567"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   io.Reader
		status int
	}{
		{"unknown call", http.MethodPost, "/api/calls/nope/answer", nil, http.StatusNotFound},
		{"invalid transition", http.MethodPost, "/api/calls/" + session.ID + "/transcript", jsonBody(t, transcriptRequest{Text: "hi"}), http.StatusConflict},
		{"unknown decision", http.MethodPost, "/api/calls/" + session.ID + "/decision", jsonBody(t, decisionRequest{Decision: "hang_up"}), http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/calls", strings.NewReader("{"), http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/calls", strings.NewReader(`{"number":"1"}`), http.StatusBadRequest},
		{"missing caller", http.MethodPost, "/api/calls", strings.NewReader(`{}`), http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/calls/history?limit=-1", nil, http.StatusBadRequest},
		{"bad final flag", http.MethodPost, "/api/calls/" + session.ID + "/audio?final=maybe", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, resp["success"])
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestServer_AudioTooLarge(t *testing.T) {
	srv, orch := newTestServer(t)
	h := srv.Handler()

	session, err := orch.StartCall(t.Context(), screening.IncomingCall{CallerNumber: "+15551234567"})
	require.NoError(t, err)
	_, _, err = orch.Answer(t.Context(), session.ID)
	require.NoError(t, err)

	rec, _ := do(t, h, http.MethodPost, "/api/calls/"+session.ID+"/audio", bytes.NewReader(make([]byte, 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_AbandonAndHealth(t *testing.T) {
	srv, orch := newTestServer(t)
	h := srv.Handler()

	session, err := orch.StartCall(t.Context(), screening.IncomingCall{CallerNumber: "+15551234567"})
	require.NoError(t, err)

	rec, resp := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])
	assert.EqualValues(t, 1, resp["active_sessions"])

	rec, _ = do(t, h, http.MethodDelete, "/api/calls/"+session.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, http.MethodDelete, "/api/calls/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.ServerConfig) {
		c.RateLimit = 1
		c.RateBurst = 1
	})
	h := srv.Handler()

	rec, _ := do(t, h, http.MethodGet, "/api/calls", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/api/calls", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// health checks are not limited
	rec, _ = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	do(t, h, http.MethodGet, "/api/calls", nil)

	rec, _ := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "call_screener_http_requests_total")
	assert.Contains(t, body, `route="GET /api/calls"`)
}

func TestServer_EventStream(t *testing.T) {
	srv, orch := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	existing, err := orch.StartCall(t.Context(), screening.IncomingCall{CallerNumber: "+15550000001"})
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ev core.SessionEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "session.snapshot", ev.Type)
	assert.Equal(t, existing.ID, ev.Session.ID)

	require.Eventually(t, func() bool {
		return srv.hub.Clients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	started, err := orch.StartCall(t.Context(), screening.IncomingCall{CallerNumber: "+15550000002"})
	require.NoError(t, err)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, screening.EventStarted, ev.Type)
	assert.Equal(t, started.ID, ev.Session.ID)
	assert.Equal(t, core.StateConnecting, ev.Session.State)
}

func TestServer_StartStop(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NoError(t, srv.Start())
	require.NoError(t, srv.Stop())
}
