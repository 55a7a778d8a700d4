// Package jobs runs CPU-bound work units off the caller's goroutine and
// delivers each result on the channel named by the unit.
package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrWorkerQueueFull is returned when a pool cannot accept more work.
var ErrWorkerQueueFull = errors.New("worker queue full")

// PoolType indicates what kind of work this pool handles.
type PoolType string

const (
	PoolTypeCPU PoolType = "cpu"
)

// WorkUnit is a single task submitted to a pool.
type WorkUnit struct {
	ID      string
	JobID   string
	Task    string // handler name
	Payload any

	// Results receives the WorkResult once the unit finishes.
	Results chan<- WorkResult
}

// WorkResult is the outcome of a work unit.
type WorkResult struct {
	Unit     *WorkUnit
	Success  bool
	Output   any
	Error    error
	Duration time.Duration
}

// TaskHandler executes a work unit and returns its output.
// Implementations should be safe for concurrent use.
type TaskHandler func(ctx context.Context, unit *WorkUnit) (any, error)

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	Workers    int    `json:"workers" yaml:"workers"`
	InFlight   int    `json:"in_flight" yaml:"in_flight"`
	QueueDepth int    `json:"queue_depth" yaml:"queue_depth"`
	Completed  int64  `json:"completed" yaml:"completed"`
	Failed     int64  `json:"failed" yaml:"failed"`
}
