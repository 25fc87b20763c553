package notify

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captured struct {
	from string
	to   []string
	data string
}

// captureBackend implements the go-smtp Backend interface and records messages
type captureBackend struct {
	mu       sync.Mutex
	messages []captured
	reject   string
}

func (b *captureBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

type captureSession struct {
	backend *captureBackend
	msg     captured
}

func (s *captureSession) Reset()        { s.msg = captured{} }
func (s *captureSession) Logout() error { return nil }

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	s.msg.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.backend.reject {
		return &smtp.SMTPError{Code: 550, Message: "no such user"}
	}
	s.msg.to = append(s.msg.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.msg.data = string(b)
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.msg)
	s.backend.mu.Unlock()
	return nil
}

func startServer(t *testing.T, be *captureBackend) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { srv.Close() })
	return l.Addr().String()
}

func resolvedSession() core.CallSession {
	return core.CallSession{
		ID:           "call-1",
		CallerNumber: "+18005550100",
		CallerName:   "Acme Offers",
		StartedAt:    time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		Transcript:   []string{"You have won a cruise."},
		Verdict: &core.ScreeningVerdict{
			Intent:               "Prize scam",
			SpamLikelihood:       0.95,
			Sentiment:            core.SentimentPositive,
			ActionRecommendation: core.ActionBlockCaller,
		},
		Decision: core.DecisionDeclineMessage,
	}
}

func TestSMTPNotifier(t *testing.T) {
	be := &captureBackend{reject: "nobody@example.com"}
	addr := startServer(t, be)

	n := NewSMTPNotifier(addr, "screener.test", "screener@example.com",
		[]string{"nobody@example.com", "owner@example.com"}, "", "", 0.7, zap.NewNop())
	require.NoError(t, n.NotifyResolved(t.Context(), resolvedSession()))

	be.mu.Lock()
	defer be.mu.Unlock()
	require.Len(t, be.messages, 1)
	msg := be.messages[0]
	assert.Equal(t, "screener@example.com", msg.from)
	assert.Equal(t, []string{"owner@example.com"}, msg.to)
	assert.Contains(t, msg.data, "Subject: Screened call from Acme Offers (+18005550100): decline_with_message")
	assert.Contains(t, msg.data, "Intent: Prize scam")
	assert.Contains(t, msg.data, "Spam likelihood: 95%")
	assert.Contains(t, msg.data, "marked as likely spam")
	assert.Contains(t, msg.data, "You have won a cruise.")
}

func TestSMTPNotifier_AllRecipientsRejected(t *testing.T) {
	be := &captureBackend{reject: "nobody@example.com"}
	addr := startServer(t, be)

	n := NewSMTPNotifier(addr, "", "screener@example.com", []string{"nobody@example.com"}, "", "", 0.7, zap.NewNop())
	err := n.NotifyResolved(t.Context(), resolvedSession())
	assert.ErrorContains(t, err, "all recipients were rejected")
}

func TestSMTPNotifier_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	n := NewSMTPNotifier(addr, "", "screener@example.com", []string{"owner@example.com"}, "", "", 0.7, zap.NewNop())
	assert.Error(t, n.NotifyResolved(t.Context(), resolvedSession()))

	assert.Error(t, NewSMTPNotifier(addr, "", "a@b", nil, "", "", 0.7, zap.NewNop()).NotifyResolved(t.Context(), resolvedSession()))
	assert.NoError(t, Nop{}.NotifyResolved(t.Context(), resolvedSession()))
}
