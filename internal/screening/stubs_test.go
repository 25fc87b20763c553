package screening

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikey/llm-call-screener/internal/adapters/repository"
	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/mikey/llm-call-screener/internal/metrics"
	"go.uber.org/zap"
)

type stubTranscriber struct {
	calls atomic.Int32
	fn    func(ctx context.Context, audio []byte, cfg core.ProviderConfig) (*core.TranscriptionResult, error)
}

func (s *stubTranscriber) Name() core.ProviderID { return core.ProviderWhisper }

func (s *stubTranscriber) Transcribe(ctx context.Context, audio []byte, cfg core.ProviderConfig) (*core.TranscriptionResult, error) {
	s.calls.Add(1)
	if s.fn != nil {
		return s.fn(ctx, audio, cfg)
	}
	return &core.TranscriptionResult{Text: string(audio), Confidence: core.DefaultConfidence}, nil
}

type stubSynthesizer struct {
	mu    sync.Mutex
	texts []string
	fn    func(ctx context.Context, text string) (*core.SynthesisResult, error)
}

func (s *stubSynthesizer) Name() core.ProviderID { return core.ProviderElevenLabs }

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string, _ core.ProviderConfig) (*core.SynthesisResult, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, text)
	}
	return &core.SynthesisResult{Audio: []byte("audio:" + text), Format: "mp3", Provider: "elevenlabs"}, nil
}

func (s *stubSynthesizer) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type stubClassifier struct {
	calls   atomic.Int32
	replies atomic.Int32
	analyze func(ctx context.Context, transcript string) (*core.ScreeningVerdict, error)
	reply   func(ctx context.Context, prompt string) (string, error)
}

func (s *stubClassifier) Name() core.ProviderID { return core.ProviderOpenAI }

func (s *stubClassifier) Analyze(ctx context.Context, transcript string, _ core.ProviderConfig) (*core.ScreeningVerdict, error) {
	s.calls.Add(1)
	if s.analyze != nil {
		return s.analyze(ctx, transcript)
	}
	return core.ParseVerdict(sarahVerdict, "stub")
}

func (s *stubClassifier) GenerateResponse(ctx context.Context, prompt string, _ core.ProviderConfig) (string, error) {
	s.replies.Add(1)
	if s.reply != nil {
		return s.reply(ctx, prompt)
	}
	return "Thanks Sarah, I'll pass this on.", nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	sessions []core.CallSession
}

func (n *recordingNotifier) NotifyResolved(_ context.Context, s core.CallSession) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sessions = append(n.sessions, s)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.SessionEvent
}

func (p *recordingPublisher) Publish(ev core.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		if ev.Session.ID == id {
			out = append(out, ev.Type)
		}
	}
	return out
}

const (
	sarahTranscript = "Hi, this is Sarah from marketing, wanted to discuss a collaboration."
	sarahVerdict    = `{"intent":"Business inquiry","confidence":0.82,"spamLikelihood":0.05,"sentiment":"neutral","actionRecommendation":"offer_callback"}`
)

type harness struct {
	orch        *Orchestrator
	transcriber *stubTranscriber
	synthesizer *stubSynthesizer
	classifier  *stubClassifier
	repo        *repository.MemoryRepository
	notifier    *recordingNotifier
	events      *recordingPublisher
}

func testConfig() config.ScreeningConfig {
	return config.ScreeningConfig{
		AssistantName:     "Luci",
		AdapterTimeout:    time.Second,
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		SpamThreshold:     0.7,
		TrustedNumbers:    []string{"+15550001111", "+4420*"},
		AcknowledgeCaller: true,
	}
}

func newHarness(t *testing.T, mutate ...func(*config.ScreeningConfig)) *harness {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	logger := zap.NewNop()
	h := &harness{
		transcriber: &stubTranscriber{},
		synthesizer: &stubSynthesizer{},
		classifier:  &stubClassifier{},
		repo:        repository.NewMemoryRepository(logger, 0),
		notifier:    &recordingNotifier{},
		events:      &recordingPublisher{},
	}
	h.orch = NewOrchestrator(Deps{
		Transcriber: h.transcriber,
		Synthesizer: h.synthesizer,
		Classifier:  h.classifier,
		Repository:  h.repo,
		Notifier:    h.notifier,
		Events:      h.events,
		Metrics:     metrics.NewCollector(logger),
	}, cfg, 4096, 24*time.Hour, logger)

	t.Cleanup(func() {
		h.orch.Close()
		h.repo.Stop()
	})
	return h
}

// answered starts a call and moves it to screening
func (h *harness) answered(t *testing.T, number string) core.CallSession {
	t.Helper()
	s, err := h.orch.StartCall(t.Context(), IncomingCall{CallerNumber: number, CalleeName: "Alex"})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if _, _, err := h.orch.Answer(t.Context(), s.ID); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	return s
}
