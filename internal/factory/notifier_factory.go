package factory

import (
	"fmt"

	"github.com/mikey/llm-call-screener/internal/adapters/notify"
	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"go.uber.org/zap"
)

// NotifierFactory creates the resolved call notifier
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateNotifier returns an SMTP notifier when notifications are enabled
func (f *NotifierFactory) CreateNotifier() (core.Notifier, error) {
	nc := f.cfg.GetNotify()
	if !nc.Enabled {
		return notify.Nop{}, nil
	}
	if len(nc.To) == 0 {
		return nil, fmt.Errorf("notify.to must list at least one recipient when notifications are enabled")
	}

	sc, err := f.cfg.GetScreening()
	if err != nil {
		return nil, err
	}
	return notify.NewSMTPNotifier(nc.SMTPAddress, nc.Helo, nc.From, nc.To, nc.Username, nc.Password, sc.SpamThreshold, f.logger), nil
}
