package screening

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/llm-call-screener/internal/allowlist"
	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/mikey/llm-call-screener/internal/metrics"
	"github.com/mikey/llm-call-screener/internal/utils"
	"go.uber.org/zap"
)

// Session event types published to UI subscribers
const (
	EventStarted   = "session.started"
	EventUpdated   = "session.updated"
	EventResolved  = "session.resolved"
	EventAbandoned = "session.abandoned"
)

const (
	persistTimeout        = 5 * time.Second
	defaultAdapterTimeout = 15 * time.Second
	notifyTimeout         = 30 * time.Second
)

// IncomingCall describes a call that has just arrived
type IncomingCall struct {
	CallerNumber string `json:"callerNumber"`
	CallerName   string `json:"callerName,omitempty"`
	CalleeName   string `json:"calleeName,omitempty"`
	Language     string `json:"language,omitempty"`
}

// AudioSegment is a chunk of caller speech. Final marks the end of what the
// caller is expected to say before the call is classified.
type AudioSegment struct {
	Data  []byte
	Final bool
}

// SpokenLine is something the assistant says to the caller. Audio is empty
// when synthesis failed; the telephony layer can still fall back to Text.
type SpokenLine struct {
	Text     string `json:"text"`
	Audio    []byte `json:"audio,omitempty"`
	Format   string `json:"format,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Deps are the collaborators of the orchestrator. The three adapters are
// required; the rest fall back to no-op or default implementations.
type Deps struct {
	Transcriber core.Transcriber
	Synthesizer core.Synthesizer
	Classifier  core.Classifier
	Repository  core.CallRepository
	Notifier    core.Notifier
	Events      core.EventPublisher
	Allowlist   *allowlist.Checker
	Text        *utils.TextProcessor
	Metrics     *metrics.Collector
}

// Orchestrator runs the screening state machine for every live call
type Orchestrator struct {
	transcriber core.Transcriber
	synthesizer core.Synthesizer
	classifier  core.Classifier
	repo        core.CallRepository
	notifier    core.Notifier
	events      core.EventPublisher
	allowlist   *allowlist.Checker
	text        *utils.TextProcessor
	metrics     *metrics.Collector

	cfg               config.ScreeningConfig
	maxTranscriptSize int
	retention         time.Duration
	logger            *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

// NewOrchestrator creates a new screening orchestrator
func NewOrchestrator(deps Deps, cfg config.ScreeningConfig, maxTranscriptSize int, retention time.Duration, logger *zap.Logger) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = defaultAdapterTimeout
	}
	o := &Orchestrator{
		transcriber:       deps.Transcriber,
		synthesizer:       deps.Synthesizer,
		classifier:        deps.Classifier,
		repo:              deps.Repository,
		notifier:          deps.Notifier,
		events:            deps.Events,
		allowlist:         deps.Allowlist,
		text:              deps.Text,
		metrics:           deps.Metrics,
		cfg:               cfg,
		maxTranscriptSize: maxTranscriptSize,
		retention:         retention,
		logger:            logger,
		sessions:          make(map[string]*entry),
	}
	if o.events == nil {
		o.events = nopPublisher{}
	}
	if o.allowlist == nil {
		o.allowlist = allowlist.NewChecker(cfg.TrustedNumbers, logger)
	}
	if o.text == nil {
		o.text = utils.NewTextProcessor(logger)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewCollector(logger)
	}
	return o
}

// StartCall registers a new call in the connecting state
func (o *Orchestrator) StartCall(_ context.Context, call IncomingCall) (core.CallSession, error) {
	number := strings.TrimSpace(call.CallerNumber)
	if number == "" {
		return core.CallSession{}, ErrMissingCaller
	}

	callee := strings.TrimSpace(call.CalleeName)
	if callee == "" {
		callee = o.cfg.CalleeName
	}

	s := &core.CallSession{
		ID:           uuid.NewString(),
		CallerNumber: number,
		CallerName:   strings.TrimSpace(call.CallerName),
		CalleeName:   callee,
		StartedAt:    time.Now(),
		State:        core.StateConnecting,
		Transcript:   []string{},
		Trusted:      o.allowlist.IsTrusted(number),
	}
	e := newEntry(s)
	e.transcription = core.ProviderConfig{Language: call.Language}

	o.mu.Lock()
	o.sessions[s.ID] = e
	o.mu.Unlock()
	o.metrics.SessionStarted()

	o.logger.Info("Call started",
		zap.String("session_id", s.ID),
		zap.String("caller", number),
		zap.Bool("trusted", s.Trusted))

	snap := e.snapshot()
	o.publish(EventStarted, snap)
	return snap, nil
}

// Answer moves the call to screening and greets the caller
func (o *Orchestrator) Answer(ctx context.Context, id string) (*SpokenLine, core.CallSession, error) {
	e, gen, err := o.begin(ctx, id)
	if err != nil {
		return nil, core.CallSession{}, err
	}
	defer e.release()

	if err := e.check("answer", func(s *core.CallSession) bool {
		return s.State == core.StateConnecting
	}); err != nil {
		return nil, core.CallSession{}, err
	}

	snap, err := e.commit(gen, func(s *core.CallSession) {
		o.transition(s, core.StateScreening)
	})
	if err != nil {
		return nil, core.CallSession{}, err
	}
	o.publish(EventUpdated, snap)

	return o.speak(ctx, e, gen, core.Greeting(o.cfg.AssistantName, snap.CalleeName))
}

// SubmitAudio transcribes a chunk of caller speech and appends it to the
// transcript. A final segment triggers classification.
func (o *Orchestrator) SubmitAudio(ctx context.Context, id string, seg AudioSegment) (*SpokenLine, core.CallSession, error) {
	e, gen, err := o.begin(ctx, id)
	if err != nil {
		return nil, core.CallSession{}, err
	}
	defer e.release()

	if err := o.startSpeech(e, gen, "submit audio to"); err != nil {
		return nil, core.CallSession{}, err
	}

	if len(seg.Data) > 0 {
		callCtx, cancel := e.callContext(ctx)
		res, terr := callAdapter(callCtx, o, id, core.KindTranscription, o.transcriber.Name(),
			func(ctx context.Context) (*core.TranscriptionResult, error) {
				return o.transcriber.Transcribe(ctx, seg.Data, e.transcription)
			})
		cancel()
		if gone := requestGone(ctx, terr); gone != nil {
			return nil, core.CallSession{}, gone
		}

		snap, err := e.commit(gen, func(s *core.CallSession) {
			if terr != nil {
				o.recordFailure(s, core.KindTranscription, terr)
				return
			}
			appendText(s, res.Text)
		})
		if err != nil {
			return nil, core.CallSession{}, err
		}
		if terr != nil {
			o.publish(EventUpdated, snap)
			return nil, snap, nil
		}
	}

	return o.afterSpeech(ctx, e, gen, seg.Final)
}

// SubmitTranscript appends text the telephony layer already recognized
func (o *Orchestrator) SubmitTranscript(ctx context.Context, id, text string, final bool) (*SpokenLine, core.CallSession, error) {
	e, gen, err := o.begin(ctx, id)
	if err != nil {
		return nil, core.CallSession{}, err
	}
	defer e.release()

	if err := o.startSpeech(e, gen, "submit transcript to"); err != nil {
		return nil, core.CallSession{}, err
	}
	if _, err := e.commit(gen, func(s *core.CallSession) {
		appendText(s, text)
	}); err != nil {
		return nil, core.CallSession{}, err
	}

	return o.afterSpeech(ctx, e, gen, final)
}

// Decide resolves the call with the user's decision and tells the caller
func (o *Orchestrator) Decide(ctx context.Context, id string, d core.Decision) (*SpokenLine, core.CallSession, error) {
	text := core.DecisionLine(d)
	if text == "" {
		return nil, core.CallSession{}, ErrUnknownDecision
	}

	e, gen, err := o.begin(ctx, id)
	if err != nil {
		return nil, core.CallSession{}, err
	}
	defer e.release()

	if err := e.check("decide on", func(s *core.CallSession) bool {
		switch s.State {
		case core.StateOptions:
			return true
		case core.StateScreening, core.StateSpeaking:
			return s.NeedsManualDecision
		default:
			return false
		}
	}); err != nil {
		return nil, core.CallSession{}, err
	}

	line, _, err := o.speak(ctx, e, gen, text)
	if err != nil {
		return nil, core.CallSession{}, err
	}

	now := time.Now()
	snap, err := e.commit(gen, func(s *core.CallSession) {
		s.Decision = d
		s.ResolvedAt = &now
		o.transition(s, core.StateResolved)
	})
	if err != nil {
		return nil, core.CallSession{}, err
	}

	if o.remove(e) {
		o.metrics.SessionEnded()
	}
	e.cancel()

	o.logger.Info("Call resolved",
		zap.String("session_id", id),
		zap.String("decision", string(d)))

	o.persist(ctx, snap)
	o.publish(EventResolved, snap)
	return line, snap, nil
}

// Abandon drops a call that ended before the user decided. Results of
// in-flight adapter calls are discarded when they arrive.
func (o *Orchestrator) Abandon(_ context.Context, id string) error {
	e, err := o.lookup(id)
	if err != nil {
		return err
	}
	if !o.remove(e) {
		return ErrSessionNotFound
	}
	o.metrics.SessionEnded()

	snap := e.abandon()
	if snap.State == core.StateResolved {
		return nil
	}

	o.logger.Info("Call abandoned",
		zap.String("session_id", id),
		zap.String("state", string(snap.State)))
	o.publish(EventAbandoned, snap)
	return nil
}

// Session returns a snapshot of a live call
func (o *Orchestrator) Session(id string) (core.CallSession, error) {
	e, err := o.lookup(id)
	if err != nil {
		return core.CallSession{}, err
	}
	return e.snapshot(), nil
}

// ActiveSessions returns snapshots of every live call, oldest first
func (o *Orchestrator) ActiveSessions() []core.CallSession {
	o.mu.RLock()
	entries := make([]*entry, 0, len(o.sessions))
	for _, e := range o.sessions {
		entries = append(entries, e)
	}
	o.mu.RUnlock()

	out := make([]core.CallSession, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// History returns the most recently resolved calls
func (o *Orchestrator) History(ctx context.Context, limit int) ([]*core.CallRecord, error) {
	if o.repo == nil {
		return []*core.CallRecord{}, nil
	}
	return o.repo.List(ctx, limit)
}

// Close abandons live calls and waits for pending notifications
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	entries := o.sessions
	o.sessions = make(map[string]*entry)
	o.mu.Unlock()

	for _, e := range entries {
		e.abandon()
		o.metrics.SessionEnded()
	}
	o.wg.Wait()
	return nil
}

func (o *Orchestrator) lookup(id string) (*entry, error) {
	o.mu.RLock()
	e, ok := o.sessions[id]
	o.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// begin looks the call up and waits for its turn
func (o *Orchestrator) begin(ctx context.Context, id string) (*entry, uint64, error) {
	e, err := o.lookup(id)
	if err != nil {
		return nil, 0, err
	}
	gen, err := e.acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	return e, gen, nil
}

// remove deletes e from the live set and reports whether it was still there
func (o *Orchestrator) remove(e *entry) bool {
	id := e.id()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions[id] != e {
		return false
	}
	delete(o.sessions, id)
	return true
}

// startSpeech moves the call to speaking when caller speech arrives
func (o *Orchestrator) startSpeech(e *entry, gen uint64, event string) error {
	if err := e.check(event, func(s *core.CallSession) bool {
		return s.State == core.StateScreening || s.State == core.StateSpeaking
	}); err != nil {
		return err
	}
	_, err := e.commit(gen, func(s *core.CallSession) {
		o.transition(s, core.StateSpeaking)
	})
	return err
}

// afterSpeech either waits for more speech or classifies what was said
func (o *Orchestrator) afterSpeech(ctx context.Context, e *entry, gen uint64, final bool) (*SpokenLine, core.CallSession, error) {
	if !final {
		snap, err := e.commit(gen, func(s *core.CallSession) {
			o.transition(s, core.StateScreening)
		})
		if err != nil {
			return nil, core.CallSession{}, err
		}
		o.publish(EventUpdated, snap)
		return nil, snap, nil
	}
	return o.classify(ctx, e, gen)
}

// classify analyzes the transcript and moves the call to options
func (o *Orchestrator) classify(ctx context.Context, e *entry, gen uint64) (*SpokenLine, core.CallSession, error) {
	var (
		id         string
		transcript string
		trusted    bool
	)
	e.view(func(s *core.CallSession) {
		id = s.ID
		transcript = s.FullTranscript()
		trusted = s.Trusted
	})
	transcript = o.text.ProcessText(transcript, o.maxTranscriptSize)

	var (
		verdict *core.ScreeningVerdict
		err     error
	)
	switch {
	case trusted:
		verdict = trustedVerdict()
	case transcript == "":
		snap, cerr := e.commit(gen, func(s *core.CallSession) {
			o.requireManual(s, ReasonNoSpeech)
		})
		if cerr != nil {
			return nil, core.CallSession{}, cerr
		}
		o.publish(EventUpdated, snap)
		return nil, snap, nil
	default:
		callCtx, cancel := e.callContext(ctx)
		verdict, err = callAdapter(callCtx, o, id, core.KindClassification, o.classifier.Name(),
			func(ctx context.Context) (*core.ScreeningVerdict, error) {
				return o.classifier.Analyze(ctx, transcript, core.ProviderConfig{})
			})
		cancel()
		if gone := requestGone(ctx, err); gone != nil {
			return nil, core.CallSession{}, gone
		}
	}

	snap, cerr := e.commit(gen, func(s *core.CallSession) {
		if err != nil {
			o.recordFailure(s, core.KindClassification, err)
			return
		}
		s.Verdict = verdict
		s.NeedsManualDecision = false
		s.ManualReason = ""
		s.SpamHint = false
		o.transition(s, core.StateOptions)
	})
	if cerr != nil {
		return nil, core.CallSession{}, cerr
	}
	o.publish(EventUpdated, snap)
	if err != nil {
		return nil, snap, nil
	}

	o.logger.Info("Call classified",
		zap.String("session_id", id),
		zap.String("intent", verdict.Intent),
		zap.Float64("spam_likelihood", verdict.SpamLikelihood),
		zap.String("action", string(verdict.ActionRecommendation)),
		zap.String("source", verdict.Source))

	if !o.cfg.AcknowledgeCaller {
		return nil, snap, nil
	}
	return o.acknowledge(ctx, e, gen, transcript, verdict, snap)
}

// acknowledge speaks the suggested response, asking the classifier for one
// when the verdict came without it
func (o *Orchestrator) acknowledge(ctx context.Context, e *entry, gen uint64, transcript string, verdict *core.ScreeningVerdict, snap core.CallSession) (*SpokenLine, core.CallSession, error) {
	text := strings.TrimSpace(verdict.SuggestedResponse)
	if text == "" {
		callCtx, cancel := e.callContext(ctx)
		reply, err := callAdapter(callCtx, o, snap.ID, core.KindClassification, o.classifier.Name(),
			func(ctx context.Context) (string, error) {
				return o.classifier.GenerateResponse(ctx, core.ReplyPrompt(transcript, verdict.Intent), core.ProviderConfig{})
			})
		cancel()
		if gone := requestGone(ctx, err); gone != nil {
			return nil, core.CallSession{}, gone
		}
		if err != nil {
			updated, cerr := e.commit(gen, func(s *core.CallSession) {
				o.recordFailure(s, core.KindClassification, err)
			})
			if cerr != nil {
				return nil, core.CallSession{}, cerr
			}
			o.publish(EventUpdated, updated)
			return nil, updated, nil
		}
		text = strings.TrimSpace(reply)
	}
	if text == "" {
		return nil, snap, nil
	}
	return o.speak(ctx, e, gen, text)
}

// speak synthesizes text for the caller. A synthesis failure is recorded on
// the session and the line is returned without audio.
func (o *Orchestrator) speak(ctx context.Context, e *entry, gen uint64, text string) (*SpokenLine, core.CallSession, error) {
	callCtx, cancel := e.callContext(ctx)
	res, err := callAdapter(callCtx, o, e.id(), core.KindSynthesis, o.synthesizer.Name(),
		func(ctx context.Context) (*core.SynthesisResult, error) {
			return o.synthesizer.Synthesize(ctx, text, core.ProviderConfig{})
		})
	cancel()
	if gone := requestGone(ctx, err); gone != nil {
		return nil, core.CallSession{}, gone
	}

	snap, cerr := e.commit(gen, func(s *core.CallSession) {
		if err != nil {
			o.recordFailure(s, core.KindSynthesis, err)
		}
	})
	if cerr != nil {
		return nil, core.CallSession{}, cerr
	}

	line := &SpokenLine{Text: text}
	if err != nil {
		o.publish(EventUpdated, snap)
		return line, snap, nil
	}
	line.Audio = res.Audio
	line.Format = res.Format
	line.Provider = res.Provider
	return line, snap, nil
}

// transition changes state; callers hold the entry lock
func (o *Orchestrator) transition(s *core.CallSession, to core.CallState) {
	if s.State == to {
		return
	}
	o.metrics.RecordTransition(string(s.State), string(to))
	o.logger.Debug("Call state changed",
		zap.String("session_id", s.ID),
		zap.String("from", string(s.State)),
		zap.String("state", string(to)))
	s.State = to
}

// requestGone returns the request's error when the collaborator stopped
// waiting mid-call. Such failures say nothing about the upstream and are not
// recorded on the session.
func requestGone(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// recordFailure stores an adapter error on the session. Before a verdict
// exists the call waits for the user to decide by hand.
func (o *Orchestrator) recordFailure(s *core.CallSession, kind core.ProviderKind, err error) {
	s.Errors = append(s.Errors, core.SessionError{
		State:      s.State,
		Kind:       core.ErrorKind(err),
		Message:    err.Error(),
		OccurredAt: time.Now(),
	})

	o.logger.Warn("Adapter call failed",
		zap.String("session_id", s.ID),
		zap.String("state", string(s.State)),
		zap.String("kind", string(kind)),
		zap.String("error_kind", core.ErrorKind(err)),
		zap.Error(err))

	if s.State == core.StateScreening || s.State == core.StateSpeaking {
		o.requireManual(s, manualReason(err))
	}
}

func (o *Orchestrator) requireManual(s *core.CallSession, reason string) {
	if !s.NeedsManualDecision {
		o.metrics.RecordManualDecision(reason)
	}
	s.NeedsManualDecision = true
	s.ManualReason = reason
	s.SpamHint = allowlist.IsTollFree(s.CallerNumber)
}

// persist stores the call record and hands the summary to the notifier
func (o *Orchestrator) persist(ctx context.Context, snap core.CallSession) {
	rec := core.NewCallRecord(&snap, o.cfg.SpamThreshold, o.retention)
	o.metrics.RecordDecision(string(snap.Decision), rec.LikelySpam)

	if o.repo != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		if err := o.repo.Save(saveCtx, rec); err != nil {
			o.logger.Error("Failed to save call record",
				zap.String("session_id", snap.ID),
				zap.Error(err))
		}
		cancel()
	}

	if o.notifier == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		notifyCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := o.notifier.NotifyResolved(notifyCtx, snap); err != nil {
			o.logger.Warn("Failed to send call notification",
				zap.String("session_id", snap.ID),
				zap.Error(err))
		}
	}()
}

func (o *Orchestrator) publish(eventType string, snap core.CallSession) {
	o.events.Publish(core.SessionEvent{Type: eventType, Session: snap})
}

func appendText(s *core.CallSession, text string) {
	if text = strings.TrimSpace(text); text != "" {
		s.Transcript = append(s.Transcript, text)
	}
}

// trustedVerdict is produced locally for allowlisted callers
func trustedVerdict() *core.ScreeningVerdict {
	return &core.ScreeningVerdict{
		Intent:               "Trusted caller",
		Confidence:           1.0,
		SpamLikelihood:       0.0,
		Sentiment:            core.SentimentNeutral,
		SuggestedResponse:    "Thanks for calling, one moment please.",
		ActionRecommendation: core.ActionForward,
		Source:               "allowlist",
		AnalyzedAt:           time.Now(),
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(core.SessionEvent) {}
