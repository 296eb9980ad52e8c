package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"backoffice/internal/amqp"
	"backoffice/internal/api"
	applog "backoffice/internal/log"
	"backoffice/internal/services"
	"backoffice/internal/storage"
	"backoffice/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	return &DefaultFactory{
		logger: applog.Wrap(logger, applog.ComponentBackend),
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		b       *Backend
		cleanup []func() error
		err     error
	)
	switch config.Type {
	case SQLiteBackend:
		b, cleanup, err = f.createSQLiteBackend(config)
	case APIBackend:
		b, err = f.createAPIBackend(config)
	case MemoryBackend:
		b = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	b.Type = config.Type

	if config.AMQPURL != "" {
		events, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			b.Events = events
			cleanup = append(cleanup, events.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	// A nil *amqp.Client must not become a non-nil interface.
	var publisher services.Publisher
	if b.Events != nil {
		publisher = b.Events
	}
	b.Recorder = services.NewOccurrenceService(b.Occurrences, publisher)
	b.Processor = services.NewRecurringProcessor(b.Rules, b.Occurrences, b.Recorder)
	if config.Type == APIBackend {
		if g, ok := b.Rules.(*api.Client); ok {
			b.Processor.WithRemoteGenerator(g)
		}
	}

	return &BackendResult{
		Backend: b,
		Cleanup: closeAll(cleanup),
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Backend, []func() error, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Backend{
		Rules:       repo,
		Occurrences: repo,
		KV:          repo,
		ping:        repo.Ping,
	}, []func() error{repo.Close}, nil
}

func (f *DefaultFactory) createAPIBackend(config Config) (*Backend, error) {
	client := api.NewClient(config.APIURL, config.APIToken, config.APITimeout)
	f.logger.Info("Initialized API backend",
		"base_url", config.APIURL,
		"timeout", config.APITimeout.String())

	return &Backend{
		Rules:       client,
		Occurrences: client,
		KV:          memory.New(),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *Backend {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &Backend{
		Rules:       store,
		Occurrences: store,
		KV:          store,
	}
}

// closeAll runs fns in reverse order and joins their errors.
func closeAll(fns []func() error) CleanupFunc {
	return func() error {
		var errs []error
		for i := len(fns) - 1; i >= 0; i-- {
			if err := fns[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
