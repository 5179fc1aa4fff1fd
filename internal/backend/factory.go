package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/sheets/memory"
	"ledger/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

// CreateLedger opens the SQLite ledger with its user cache and, when
// configured, an AMQP event publisher. A broker that cannot be reached
// disables events instead of failing.
func (f *DefaultFactory) CreateLedger(ctx context.Context, config Config) (*LedgerResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	opts := services.Options{
		AmountPolicy: config.AmountPolicy,
		Strategy:     config.RecomputeStrategy,
	}

	var manager *cache.Manager
	if config.UserCacheSize > 0 {
		users := cache.NewLRUCache[int64](config.UserCacheSize, config.UserCacheTTL)
		manager = cache.NewManager()
		manager.Register(users)
		manager.StartCleanup(config.UserCacheTTL)
		opts.UserCache = users
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			opts.Publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	svc := services.NewLedgerService(repo, opts)

	f.logger.InfoContext(ctx, "Initialized SQLite ledger",
		log.FieldDBPath, config.SQLiteDBPath,
		log.FieldStrategy, config.RecomputeStrategy.String(),
		"amount_policy", string(config.AmountPolicy),
		"user_cache", config.UserCacheSize,
		"events_enabled", opts.Publisher != nil)

	return &LedgerResult{
		Ledger: svc,
		Cleanup: func() error {
			if manager != nil {
				manager.Stop()
			}
			return svc.Close()
		},
	}, nil
}

// CreateMirror returns the mirror the worker writes to.
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (sheets.LedgerMirror, error) {
	switch config.Mirror {
	case SheetsMirror:
		cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Google Sheets mirror", "sheet", config.GoogleSheetName)
		return cli, nil
	case MemoryMirror:
		f.logger.InfoContext(ctx, "Initialized memory mirror")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported mirror type: %s", config.Mirror)
	}
}
