package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/llm-call-screener/internal/core"
	"go.uber.org/zap"
)

const (
	dialTimeout    = 10 * time.Second
	sessionTimeout = 30 * time.Second
)

var _ core.Notifier = (*SMTPNotifier)(nil)

// SMTPNotifier mails a summary of every resolved call to the user
type SMTPNotifier struct {
	addr          string
	helo          string
	from          string
	to            []string
	username      string
	password      string
	spamThreshold float64
	logger        *zap.Logger
}

// NewSMTPNotifier creates a new SMTP notifier
func NewSMTPNotifier(addr, helo, from string, to []string, username, password string, spamThreshold float64, logger *zap.Logger) *SMTPNotifier {
	if helo == "" {
		helo = "localhost"
	}
	return &SMTPNotifier{
		addr:          addr,
		helo:          helo,
		from:          from,
		to:            to,
		username:      username,
		password:      password,
		spamThreshold: spamThreshold,
		logger:        logger,
	}
}

// NotifyResolved sends the call summary
func (n *SMTPNotifier) NotifyResolved(ctx context.Context, session core.CallSession) error {
	if len(n.to) == 0 {
		return fmt.Errorf("no notification recipients configured")
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	deadline := time.Now().Add(sessionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(n.helo); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if n.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", n.username, n.password)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := c.Mail(n.from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range n.to {
		if err := c.Rcpt(recipient, nil); err != nil {
			n.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(n.message(session)); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message has already been accepted
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}

	n.logger.Debug("Sent call summary",
		zap.String("session_id", session.ID),
		zap.Strings("recipients", n.to))
	return nil
}

// message renders the summary as a plain text RFC 5322 message
func (n *SMTPNotifier) message(s core.CallSession) []byte {
	caller := s.CallerNumber
	if s.CallerName != "" {
		caller = fmt.Sprintf("%s (%s)", s.CallerName, s.CallerNumber)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Caller: %s\r\n", caller)
	fmt.Fprintf(&body, "Started: %s\r\n", s.StartedAt.Format(time.RFC1123))
	fmt.Fprintf(&body, "Decision: %s\r\n", s.Decision)
	if s.Trusted {
		body.WriteString("Caller is on the allowlist\r\n")
	}
	if v := s.Verdict; v != nil {
		fmt.Fprintf(&body, "Intent: %s\r\n", v.Intent)
		fmt.Fprintf(&body, "Spam likelihood: %.0f%%\r\n", v.SpamLikelihood*100)
		fmt.Fprintf(&body, "Sentiment: %s\r\n", v.Sentiment)
		fmt.Fprintf(&body, "Recommended action: %s\r\n", v.ActionRecommendation)
		if v.IsLikelySpam(n.spamThreshold) {
			body.WriteString("This call was marked as likely spam\r\n")
		}
	} else if s.ManualReason != "" {
		fmt.Fprintf(&body, "Screening: %s\r\n", s.ManualReason)
	}
	if t := s.FullTranscript(); t != "" {
		fmt.Fprintf(&body, "\r\nTranscript:\r\n%s\r\n", t)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.to, ", "))
	fmt.Fprintf(&msg, "Subject: Screened call from %s: %s\r\n", caller, s.Decision)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "Message-ID: <%s@%s>\r\n", uuid.NewString(), n.helo)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body.String())
	return msg.Bytes()
}

// Nop discards notifications; used when notifications are disabled
type Nop struct{}

// NotifyResolved does nothing
func (Nop) NotifyResolved(context.Context, core.CallSession) error { return nil }
