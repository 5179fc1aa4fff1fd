package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"
)

// LedgerReader is the read side of the ledger the worker mirrors.
type LedgerReader interface {
	ListAllExpenses(ctx context.Context) ([]core.LedgerRow, error)
}

// MirrorWorker copies the all-users ledger view into a mirror whenever a
// ledger event arrives and on a fixed interval.
type MirrorWorker struct {
	ledger   LedgerReader
	mirror   sheets.LedgerMirror
	interval time.Duration
	group    singleflight.Group

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorWorker(ledger LedgerReader, mirror sheets.LedgerMirror, interval time.Duration) *MirrorWorker {
	return &MirrorWorker{
		ledger:   ledger,
		mirror:   mirror,
		interval: interval,
	}
}

// HandleEvent refreshes the mirror after a committed ledger change.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.DebugContext(ctx, "Mirroring after ledger event",
		log.FieldEventType, ev.Type,
		log.FieldUserID, ev.UserID,
		log.FieldExpenseID, ev.ExpenseID)

	return w.Refresh(ctx)
}

// Refresh replaces the mirror with the current ledger. Concurrent calls share
// one read-and-replace; a caller that joined a refresh already under way
// runs one more, so the mirror always reflects a read that began after the
// call.
func (w *MirrorWorker) Refresh(ctx context.Context) error {
	led := false
	_, err, shared := w.group.Do("mirror", func() (interface{}, error) {
		led = true
		return nil, w.refresh(ctx)
	})
	// singleflight also reports shared to the caller that ran fn.
	if err == nil && shared && !led {
		_, err, _ = w.group.Do("mirror", func() (interface{}, error) {
			return nil, w.refresh(ctx)
		})
	}
	return err
}

func (w *MirrorWorker) refresh(ctx context.Context) error {
	start := time.Now()

	rows, err := w.ledger.ListAllExpenses(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	if err := w.mirror.Replace(ctx, rows); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}

	slog.DebugContext(ctx, "Mirror refreshed",
		log.FieldRows, len(rows),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Start refreshes once and then every interval until Stop or ctx is done.
func (w *MirrorWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("mirror worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Mirror worker started", "interval", w.interval)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (w *MirrorWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Mirror worker stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror worker stop timed out")
		return ctx.Err()
	}
}

func (w *MirrorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *MirrorWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.periodicRefresh(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.periodicRefresh(ctx)
		}
	}
}

func (w *MirrorWorker) periodicRefresh(ctx context.Context) {
	if err := w.Refresh(ctx); err != nil {
		slog.ErrorContext(ctx, "Periodic mirror refresh failed", log.FieldError, err)
	}
}
