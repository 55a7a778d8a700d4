package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// CPUWorkerPool manages a pool of workers for CPU-bound tasks.
// All workers share a single queue - natural load balancing via Go channel semantics.
type CPUWorkerPool struct {
	name        string
	logger      *slog.Logger
	workerCount int

	// Single shared queue (all workers pull from this)
	queue chan *WorkUnit

	// Task handlers by task name
	handlers map[string]TaskHandler
	mu       sync.RWMutex

	inFlight  atomic.Int32
	completed atomic.Int64
	failed    atomic.Int64
}

// CPUWorkerPoolConfig configures a new CPU worker pool.
type CPUWorkerPoolConfig struct {
	Name        string
	Logger      *slog.Logger
	WorkerCount int // Number of worker goroutines (default: runtime.NumCPU())
	QueueSize   int // Queue size (default: 64)
}

// NewCPUWorkerPool creates a new CPU worker pool.
func NewCPUWorkerPool(cfg CPUWorkerPoolConfig) *CPUWorkerPool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "cpu"
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	return &CPUWorkerPool{
		name:        name,
		logger:      logger.With("pool", name, "type", PoolTypeCPU, "workers", workerCount),
		workerCount: workerCount,
		queue:       make(chan *WorkUnit, queueSize),
		handlers:    make(map[string]TaskHandler),
	}
}

// RegisterHandler registers a handler for a task type.
// Registering the same task twice replaces the earlier handler.
func (p *CPUWorkerPool) RegisterHandler(taskName string, handler TaskHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[taskName] = handler
	p.logger.Debug("registered CPU task handler", "task", taskName)
}

// Name returns the pool name.
func (p *CPUWorkerPool) Name() string {
	return p.name
}

// Start begins the pool's processing. Blocks until ctx cancelled.
func (p *CPUWorkerPool) Start(ctx context.Context) {
	p.logger.Debug("cpu pool starting")

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	p.logger.Debug("pool stopped")
}

// worker processes work units from the shared queue.
func (p *CPUWorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return

		case unit := <-p.queue:
			p.inFlight.Add(1)
			result := p.process(ctx, unit)
			p.inFlight.Add(-1)
			if result.Success {
				p.completed.Add(1)
			} else {
				p.failed.Add(1)
			}
			p.logger.Debug("cpu worker completed unit",
				"worker_id", id,
				"unit_id", unit.ID,
				"job_id", unit.JobID,
				"success", result.Success,
				"duration", result.Duration)

			if unit.Results == nil {
				continue
			}
			select {
			case unit.Results <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Submit adds a work unit to the pool's queue.
func (p *CPUWorkerPool) Submit(unit *WorkUnit) error {
	select {
	case p.queue <- unit:
		return nil
	default:
		p.logger.Warn("cpu pool queue full", "unit_id", unit.ID, "job_id", unit.JobID)
		return fmt.Errorf("%w: %s", ErrWorkerQueueFull, p.name)
	}
}

// Status returns current pool status.
func (p *CPUWorkerPool) Status() PoolStatus {
	return PoolStatus{
		Name:       p.name,
		Type:       string(PoolTypeCPU),
		Workers:    p.workerCount,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
	}
}

// process executes a work unit. A panicking handler fails the unit instead of
// taking the worker down.
func (p *CPUWorkerPool) process(ctx context.Context, unit *WorkUnit) (result WorkResult) {
	result = WorkResult{Unit: unit}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	p.mu.RLock()
	handler, ok := p.handlers[unit.Task]
	p.mu.RUnlock()

	if !ok {
		result.Error = fmt.Errorf("no handler registered for CPU task: %s", unit.Task)
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Output = nil
			result.Error = fmt.Errorf("CPU task %s panicked: %v", unit.Task, r)
			p.logger.Error("CPU work unit panicked", "unit_id", unit.ID, "task", unit.Task, "panic", r)
		}
	}()

	out, err := handler(ctx, unit)
	if err != nil {
		result.Error = err
		p.logger.Debug("CPU work unit failed", "unit_id", unit.ID, "task", unit.Task, "error", err)
		return result
	}

	result.Success = true
	result.Output = out
	return result
}
