package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/llm-call-screener/internal/adapters/repository"
	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates call record repositories based on configuration
type RepositoryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCallRepository creates a call record repository based on the configuration
func (f *RepositoryFactory) CreateCallRepository() (core.CallRepository, error) {
	rc, err := f.cfg.GetRepository()
	if err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}

	switch rc.Type {
	case "memory":
		return repository.NewMemoryRepository(f.logger, rc.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(rc.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return repository.NewSQLiteRepository(rc.SQLitePath, f.logger, rc.CleanupFrequency)
	case "mysql":
		return repository.NewMySQLRepository(rc.MySQLDSN, f.logger, rc.CleanupFrequency)
	case "redis":
		return repository.NewRedisRepository(&redis.Options{
			Addr:     rc.RedisAddr,
			Password: rc.RedisPassword,
			DB:       rc.RedisDB,
		}, f.logger, rc.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", rc.Type)
	}
}
