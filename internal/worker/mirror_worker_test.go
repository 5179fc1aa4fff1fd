package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/sheets/memory"
)

type fakeLedger struct {
	mu    sync.Mutex
	rows  []core.LedgerRow
	err   error
	reads atomic.Int32
	// gate, when set, holds a read's snapshot until closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeLedger) ListAllExpenses(ctx context.Context) ([]core.LedgerRow, error) {
	f.reads.Add(1)
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	rows, err := append([]core.LedgerRow(nil), f.rows...), f.err
	f.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}
	return rows, err
}

func (f *fakeLedger) set(rows ...core.LedgerRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
}

func row(id int64, user string) core.LedgerRow {
	return core.LedgerRow{Expense: core.Expense{ID: id}, Username: user}
}

func TestHandleEventReplacesMirror(t *testing.T) {
	ledger := &fakeLedger{}
	ledger.set(row(1, "alice"), row(2, "bob"))
	mirror := memory.New()
	w := NewMirrorWorker(ledger, mirror, time.Hour)

	err := w.HandleEvent(context.Background(), amqp.NewExpenseAddedEvent(1, 2))
	require.NoError(t, err)

	got := mirror.Rows()
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[1].Username)
	assert.Equal(t, int32(1), ledger.reads.Load())
}

func TestRefreshPropagatesReadErrors(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("database is locked")}
	mirror := memory.New()
	w := NewMirrorWorker(ledger, mirror, time.Hour)

	err := w.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read ledger")
	assert.Equal(t, 0, mirror.Replacements())
}

func TestRefreshJoiningInFlightSeesLaterCommits(t *testing.T) {
	ledger := &fakeLedger{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	ledger.set(row(1, "alice"))
	mirror := memory.New()
	w := NewMirrorWorker(ledger, mirror, time.Hour)
	ctx := context.Background()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Refresh(gctx) })
	<-ledger.entered

	// Committed while the first refresh is still reading.
	ledger.set(row(1, "alice"), row(2, "bob"))
	for i := 0; i < 4; i++ {
		g.Go(func() error { return w.Refresh(gctx) })
	}

	ledger.mu.Lock()
	close(ledger.gate)
	ledger.gate = nil
	ledger.mu.Unlock()

	require.NoError(t, g.Wait())
	assert.Len(t, mirror.Rows(), 2)
}

func TestRefreshLeaderDoesNotRunFollowUp(t *testing.T) {
	first := make(chan struct{})
	ledger := &fakeLedger{gate: first, entered: make(chan struct{}, 1)}
	ledger.set(row(1, "alice"))
	w := NewMirrorWorker(ledger, memory.New(), time.Hour)
	ctx := context.Background()

	leaderDone := make(chan error, 1)
	go func() { leaderDone <- w.Refresh(ctx) }()
	<-ledger.entered

	var g errgroup.Group
	for i := 0; i < 3; i++ {
		g.Go(func() error { return w.Refresh(ctx) })
	}
	// Give the followers time to join the flight.
	time.Sleep(50 * time.Millisecond)

	// Any read after the first blocks until second is closed.
	second := make(chan struct{})
	ledger.mu.Lock()
	ledger.gate = second
	ledger.mu.Unlock()
	close(first)

	select {
	case err := <-leaderDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("leader waited on the follow-up refresh")
	}

	ledger.mu.Lock()
	ledger.gate = nil
	ledger.mu.Unlock()
	close(second)

	require.NoError(t, g.Wait())
	assert.GreaterOrEqual(t, ledger.reads.Load(), int32(2))
}

func TestStartStop(t *testing.T) {
	ledger := &fakeLedger{}
	ledger.set(row(1, "alice"))
	mirror := memory.New()
	w := NewMirrorWorker(ledger, mirror, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(ctx), "second start should fail")

	assert.Eventually(t, func() bool { return mirror.Replacements() >= 2 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop(ctx))
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop(ctx), "stop is idempotent")

	// Restart after stop
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Stop(ctx))
}

func TestLoopExitsOnContextCancel(t *testing.T) {
	ledger := &fakeLedger{}
	w := NewMirrorWorker(ledger, memory.New(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, w.Start(ctx))
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	assert.NoError(t, w.Stop(stopCtx))
}
