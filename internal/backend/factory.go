package backend

import (
	"context"
	"fmt"

	"cashflow/internal/log"
	"cashflow/internal/seed"
	"cashflow/internal/storage"
	"cashflow/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		res = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.SeedFile != "" {
		if err := f.applySeed(ctx, res, config.SeedFile); err != nil {
			res.Close()
			return nil, err
		}
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("SQLite repository not ready: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Result{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *Result {
	f.logger.Info("Initialized memory backend")
	return &Result{Store: memory.New()}
}

func (f *DefaultFactory) applySeed(ctx context.Context, res *Result, path string) error {
	fixture, err := seed.Load(path)
	if err != nil {
		return err
	}
	stats, err := seed.Apply(ctx, res.Store, fixture)
	if err != nil {
		return fmt.Errorf("apply seed %s: %w", path, err)
	}
	res.Seeded = &stats

	f.logger.Info("Applied seed file",
		"path", path,
		"accounts", stats.Accounts,
		"transactions", stats.Transactions,
		"schedules", stats.Schedules,
		log.FieldOperation, log.OpSeed)
	return nil
}
