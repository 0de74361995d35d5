package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/observability"
	"github.com/ayo6706/parimutuel-markets/internal/service"
	"go.uber.org/zap"
)

// Reconciler is the part of service.ReconciliationService the worker needs.
type Reconciler interface {
	Run(ctx context.Context) (service.ReconciliationReport, error)
}

// ReconciliationWorker runs periodic pool reconciliation checks.
type ReconciliationWorker struct {
	svc      Reconciler
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReconciliationWorker constructs a worker with a default hourly interval.
func NewReconciliationWorker(svc Reconciler) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:      svc,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs reconciliation at the configured interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	zap.L().Info("reconciliation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	report, err := w.svc.Run(ctx)
	if err != nil {
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
		return
	}
	if !report.Clean() {
		observability.IncrementWorkerRun("reconciliation", "violations")
		return
	}
	observability.IncrementWorkerRun("reconciliation", "success")
}
