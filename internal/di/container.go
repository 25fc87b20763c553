package di

import (
	"fmt"

	"github.com/mikey/llm-call-screener/internal/adapters/api"
	"github.com/mikey/llm-call-screener/internal/allowlist"
	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/mikey/llm-call-screener/internal/factory"
	"github.com/mikey/llm-call-screener/internal/logging"
	"github.com/mikey/llm-call-screener/internal/metrics"
	"github.com/mikey/llm-call-screener/internal/ports"
	"github.com/mikey/llm-call-screener/internal/screening"
	"github.com/mikey/llm-call-screener/internal/utils"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// BuildContainer creates and configures the dependency injection container for the service
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Provide configuration
	if err := container.Provide(config.New); err != nil {
		return nil, fmt.Errorf("failed to provide config: %w", err)
	}

	// Provide logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, fmt.Errorf("failed to provide logger: %w", err)
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}
	if err := provideSynthesizer(container); err != nil {
		return nil, err
	}

	// Provide call record storage
	if err := container.Provide(factory.NewRepositoryFactory); err != nil {
		return nil, fmt.Errorf("failed to provide repository factory: %w", err)
	}
	if err := container.Provide(func(f *factory.RepositoryFactory) (core.CallRepository, error) {
		return f.CreateCallRepository()
	}); err != nil {
		return nil, fmt.Errorf("failed to provide call repository: %w", err)
	}

	// Provide notifier
	if err := container.Provide(factory.NewNotifierFactory); err != nil {
		return nil, fmt.Errorf("failed to provide notifier factory: %w", err)
	}
	if err := container.Provide(func(f *factory.NotifierFactory) (core.Notifier, error) {
		return f.CreateNotifier()
	}); err != nil {
		return nil, fmt.Errorf("failed to provide notifier: %w", err)
	}

	// Provide event hub for UI subscribers
	if err := container.Provide(api.NewHub); err != nil {
		return nil, fmt.Errorf("failed to provide event hub: %w", err)
	}

	// Provide orchestrator
	if err := container.Provide(func(
		cfg *config.Config,
		transcriber core.Transcriber,
		synthesizer core.Synthesizer,
		classifier core.Classifier,
		repo core.CallRepository,
		notifier core.Notifier,
		hub *api.Hub,
		checker *allowlist.Checker,
		text *utils.TextProcessor,
		collector *metrics.Collector,
		logger *zap.Logger,
	) (*screening.Orchestrator, error) {
		sc, err := cfg.GetScreening()
		if err != nil {
			return nil, err
		}
		rc, err := cfg.GetRepository()
		if err != nil {
			return nil, err
		}
		return screening.NewOrchestrator(screening.Deps{
			Transcriber: transcriber,
			Synthesizer: synthesizer,
			Classifier:  classifier,
			Repository:  repo,
			Notifier:    notifier,
			Events:      hub,
			Allowlist:   checker,
			Text:        text,
			Metrics:     collector,
		}, sc, cfg.GetClassification().MaxTranscriptSize, rc.Retention, logger), nil
	}); err != nil {
		return nil, fmt.Errorf("failed to provide orchestrator: %w", err)
	}

	if err := container.Provide(func(o *screening.Orchestrator) ports.ScreeningService {
		return o
	}); err != nil {
		return nil, fmt.Errorf("failed to provide screening service: %w", err)
	}

	// Provide HTTP gateway
	if err := container.Provide(func(
		cfg *config.Config,
		service ports.ScreeningService,
		hub *api.Hub,
		collector *metrics.Collector,
		logger *zap.Logger,
	) (ports.CallGateway, error) {
		sc, err := cfg.GetServer()
		if err != nil {
			return nil, err
		}
		rc, err := cfg.GetRepository()
		if err != nil {
			return nil, err
		}
		return api.NewServer(service, hub, collector, sc, rc.HistoryLimit, logger), nil
	}); err != nil {
		return nil, fmt.Errorf("failed to provide call gateway: %w", err)
	}

	return container, nil
}

// provideCommon registers the adapters and helpers shared by the service and the CLI
func provideCommon(container *dig.Container) error {
	if err := container.Provide(factory.NewAdapterFactory); err != nil {
		return fmt.Errorf("failed to provide adapter factory: %w", err)
	}
	if err := container.Provide(func(f *factory.AdapterFactory) (core.Transcriber, error) {
		return f.CreateTranscriber()
	}); err != nil {
		return fmt.Errorf("failed to provide transcriber: %w", err)
	}
	if err := container.Provide(func(f *factory.AdapterFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return fmt.Errorf("failed to provide classifier: %w", err)
	}

	if err := container.Provide(func(f *factory.AdapterFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return fmt.Errorf("failed to provide text processor: %w", err)
	}

	if err := container.Provide(metrics.NewCollector); err != nil {
		return fmt.Errorf("failed to provide metrics collector: %w", err)
	}

	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*allowlist.Checker, error) {
		sc, err := cfg.GetScreening()
		if err != nil {
			return nil, err
		}
		return allowlist.NewChecker(sc.TrustedNumbers, logger), nil
	}); err != nil {
		return fmt.Errorf("failed to provide allowlist: %w", err)
	}

	return nil
}

// provideSynthesizer registers the configured speech synthesizer
func provideSynthesizer(container *dig.Container) error {
	if err := container.Provide(func(f *factory.AdapterFactory) (core.Synthesizer, error) {
		return f.CreateSynthesizer()
	}); err != nil {
		return fmt.Errorf("failed to provide synthesizer: %w", err)
	}
	return nil
}
