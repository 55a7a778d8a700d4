package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func startPool(t *testing.T, cfg CPUWorkerPoolConfig) *CPUWorkerPool {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	pool := NewCPUWorkerPool(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return pool
}

func receive(t *testing.T, results <-chan WorkResult) WorkResult {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for work result")
		return WorkResult{}
	}
}

func TestCPUWorkerPool(t *testing.T) {
	t.Run("delivers handler output", func(t *testing.T) {
		pool := NewCPUWorkerPool(CPUWorkerPoolConfig{Name: "test", WorkerCount: 2})
		pool.RegisterHandler("double", func(ctx context.Context, unit *WorkUnit) (any, error) {
			return unit.Payload.(int) * 2, nil
		})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go pool.Start(ctx)

		results := make(chan WorkResult, 1)
		if err := pool.Submit(&WorkUnit{ID: "u1", Task: "double", Payload: 21, Results: results}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		r := receive(t, results)
		if !r.Success {
			t.Fatalf("Success = false, error = %v", r.Error)
		}
		if r.Output != 42 {
			t.Errorf("Output = %v, want 42", r.Output)
		}
		if r.Unit == nil || r.Unit.ID != "u1" {
			t.Errorf("Unit = %+v, want u1", r.Unit)
		}
	})

	t.Run("reports handler errors", func(t *testing.T) {
		pool := startPool(t, CPUWorkerPoolConfig{WorkerCount: 1})
		boom := errors.New("boom")
		pool.RegisterHandler("fail", func(ctx context.Context, unit *WorkUnit) (any, error) {
			return nil, boom
		})

		results := make(chan WorkResult, 1)
		if err := pool.Submit(&WorkUnit{ID: "u1", Task: "fail", Results: results}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		r := receive(t, results)
		if r.Success {
			t.Fatal("Success = true, want false")
		}
		if !errors.Is(r.Error, boom) {
			t.Errorf("Error = %v, want %v", r.Error, boom)
		}
	})

	t.Run("unknown task fails the unit", func(t *testing.T) {
		pool := startPool(t, CPUWorkerPoolConfig{WorkerCount: 1})

		results := make(chan WorkResult, 1)
		if err := pool.Submit(&WorkUnit{ID: "u1", Task: "missing", Results: results}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		r := receive(t, results)
		if r.Success || r.Error == nil {
			t.Errorf("result = %+v, want failure", r)
		}
	})

	t.Run("recovers from panics", func(t *testing.T) {
		pool := startPool(t, CPUWorkerPoolConfig{WorkerCount: 1})
		pool.RegisterHandler("panic", func(ctx context.Context, unit *WorkUnit) (any, error) {
			panic("kaboom")
		})
		pool.RegisterHandler("ok", func(ctx context.Context, unit *WorkUnit) (any, error) {
			return "fine", nil
		})

		results := make(chan WorkResult, 2)
		if err := pool.Submit(&WorkUnit{ID: "u1", Task: "panic", Results: results}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if r := receive(t, results); r.Success || r.Error == nil {
			t.Errorf("panic result = %+v, want failure", r)
		}

		// The single worker must still be alive.
		if err := pool.Submit(&WorkUnit{ID: "u2", Task: "ok", Results: results}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if r := receive(t, results); !r.Success || r.Output != "fine" {
			t.Errorf("follow-up result = %+v, want success", r)
		}

		status := pool.Status()
		if status.Failed != 1 || status.Completed != 1 {
			t.Errorf("Status() failed=%d completed=%d, want 1 and 1", status.Failed, status.Completed)
		}
	})

	t.Run("rejects work when the queue is full", func(t *testing.T) {
		// Not started, so nothing drains the queue.
		pool := NewCPUWorkerPool(CPUWorkerPoolConfig{Name: "full", QueueSize: 1})

		if err := pool.Submit(&WorkUnit{ID: "u1"}); err != nil {
			t.Fatalf("first Submit() error = %v", err)
		}
		err := pool.Submit(&WorkUnit{ID: "u2"})
		if !errors.Is(err, ErrWorkerQueueFull) {
			t.Errorf("second Submit() error = %v, want ErrWorkerQueueFull", err)
		}
		if depth := pool.Status().QueueDepth; depth != 1 {
			t.Errorf("QueueDepth = %d, want 1", depth)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		pool := NewCPUWorkerPool(CPUWorkerPoolConfig{})
		status := pool.Status()
		if status.Name != "cpu" {
			t.Errorf("Name = %q, want cpu", status.Name)
		}
		if status.Workers <= 0 {
			t.Errorf("Workers = %d, want > 0", status.Workers)
		}
		if status.Type != string(PoolTypeCPU) {
			t.Errorf("Type = %q, want %q", status.Type, PoolTypeCPU)
		}
	})
}
