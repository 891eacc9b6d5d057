// Package workers runs the periodic reminder sweeps.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/convenehq/convene/internal/reminders/application/services"
)

// DispatchWorker sweeps due reminders on an interval and runs a
// maintenance pass once per maintenance interval.
type DispatchWorker struct {
	dispatcher          *services.Dispatcher
	sweepInterval       time.Duration
	maintenanceInterval time.Duration
	logger              *slog.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex
}

// NewDispatchWorker creates a new DispatchWorker.
func NewDispatchWorker(dispatcher *services.Dispatcher, sweepInterval, maintenanceInterval time.Duration, logger *slog.Logger) *DispatchWorker {
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	if maintenanceInterval <= 0 {
		maintenanceInterval = time.Hour
	}
	return &DispatchWorker{
		dispatcher:          dispatcher,
		sweepInterval:       sweepInterval,
		maintenanceInterval: maintenanceInterval,
		logger:              logger,
		stopChan:            make(chan struct{}),
	}
}

// Start begins the sweep loop in a goroutine.
func (w *DispatchWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("reminder dispatch worker started",
		slog.Duration("sweep_interval", w.sweepInterval),
		slog.Duration("maintenance_interval", w.maintenanceInterval),
	)
}

// Stop gracefully stops the worker.
func (w *DispatchWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("reminder dispatch worker stopped")
}

// IsRunning returns true if the worker is running.
func (w *DispatchWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *DispatchWorker) run(ctx context.Context) {
	defer w.wg.Done()

	sweep := time.NewTicker(w.sweepInterval)
	defer sweep.Stop()
	maintain := time.NewTicker(w.maintenanceInterval)
	defer maintain.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-sweep.C:
			if _, err := w.dispatcher.SweepOnce(ctx); err != nil {
				w.logger.Error("reminder sweep failed", slog.Any("error", err))
			}
		case <-maintain.C:
			if err := w.dispatcher.Maintain(ctx); err != nil {
				w.logger.Error("reminder maintenance failed", slog.Any("error", err))
			}
		}
	}
}
