package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout, log.ComponentWorker)

	if err := run(logger); err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	logger.Info("Starting ledger-worker", log.FieldOperation, log.OpStartup)

	cfg, err := cli.LoadAndValidateWorkerConfig()
	if err != nil {
		return err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// The worker only reads the ledger; it never publishes.
	backendCfg.AMQPURL = ""

	factory := backend.NewFactory(logger.Logger)
	setupCtx := context.Background()

	ledger, err := factory.CreateLedger(setupCtx, backendCfg)
	if err != nil {
		return err
	}
	defer cli.RunCleanup(logger, "ledger", ledger.Cleanup)

	mirror, err := factory.CreateMirror(setupCtx, backendCfg)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer cli.RunCleanup(logger, "amqp client", client.Close)

	mw := worker.NewMirrorWorker(ledger.Ledger, mirror, cfg.MirrorInterval)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := mw.Stop(ctx); err != nil {
			logger.Warn("Mirror worker did not stop cleanly", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeLedgerEvents(gctx, mw.HandleEvent)
	})
	g.Go(func() error {
		if err := mw.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	logger.Info("Ledger worker running",
		"mirror", backendCfg.Mirror.String(),
		"interval", cfg.MirrorInterval,
		"queue", cfg.AMQPQueue)

	err = g.Wait()
	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Ledger worker stopped")
	return nil
}
