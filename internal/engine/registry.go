package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Registry owns every strategy run for the process lifetime. Runs are never
// evicted so terminal runs stay queryable; the maps are the only state shared
// across workers and all access is serialized here. Worker handles are
// retained so shutdown can cancel and wait instead of abandoning goroutines.
type Registry struct {
	mu      sync.RWMutex
	twap    map[string]*TWAPRun
	grid    map[string]*GridRun
	cancels map[string]context.CancelFunc
	lastID  int64

	wg sync.WaitGroup
}

func NewRegistry() *Registry {
	return &Registry{
		twap:    make(map[string]*TWAPRun),
		grid:    make(map[string]*GridRun),
		cancels: make(map[string]context.CancelFunc),
	}
}

// newRunID builds {KIND}_{SYMBOL}_{unix}, bumping the timestamp when two runs
// for the same symbol start within one second.
func (r *Registry) newRunID(kind, symbol string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := time.Now().Unix()
	if ts <= r.lastID {
		ts = r.lastID + 1
	}
	r.lastID = ts
	return fmt.Sprintf("%s_%s_%d", kind, symbol, ts)
}

func (r *Registry) addTWAP(run *TWAPRun, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.twap[run.id] = run
	if cancel != nil {
		r.cancels[run.id] = cancel
	}
}

func (r *Registry) addGrid(run *GridRun, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grid[run.id] = run
	if cancel != nil {
		r.cancels[run.id] = cancel
	}
}

func (r *Registry) twapRun(id string) (*TWAPRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.twap[id]
	return run, ok
}

func (r *Registry) gridRun(id string) (*GridRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.grid[id]
	return run, ok
}

func (r *Registry) cancelFunc(id string) (context.CancelFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cancel, ok := r.cancels[id]
	return cancel, ok
}

// track registers a worker goroutine with the shutdown wait group.
func (r *Registry) track() { r.wg.Add(1) }

func (r *Registry) workerDone() { r.wg.Done() }

// TWAPSnapshots lists every TWAP run, newest last.
func (r *Registry) TWAPSnapshots() []TWAPSnapshot {
	r.mu.RLock()
	runs := make([]*TWAPRun, 0, len(r.twap))
	for _, run := range r.twap {
		runs = append(runs, run)
	}
	r.mu.RUnlock()
	out := make([]TWAPSnapshot, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.Snapshot())
	}
	return out
}

// GridSnapshots lists every grid run.
func (r *Registry) GridSnapshots() []GridSnapshot {
	r.mu.RLock()
	runs := make([]*GridRun, 0, len(r.grid))
	for _, run := range r.grid {
		runs = append(runs, run)
	}
	r.mu.RUnlock()
	out := make([]GridSnapshot, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.Snapshot())
	}
	return out
}

// Shutdown cancels all outstanding workers and waits for them to exit, or
// returns the context error if the deadline passes first.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
