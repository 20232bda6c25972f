// Package runner implements the serialised task queue described in §4.6:
// tasks advertise a table scope and a read/write mode, and the runner
// admits them under the rule that RW tasks are mutually exclusive with any
// task sharing a table while RO tasks with disjoint scopes may proceed
// concurrently.
//
// Grounded on the teacher's pkg/mvcc transaction manager for the
// admit/commit/abort shape, collapsed to scope-based mutual exclusion
// instead of MVCC snapshot isolation since this engine serialises
// conflicting work at admission time rather than resolving write-write
// conflicts after the fact.
package runner

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasuganosora/rowwatch/pkg/backstore"
	"github.com/kasuganosora/rowwatch/pkg/dberrors"
)

// Task is one unit of admission-controlled work.
type Task struct {
	ID    uuid.UUID
	Scope []string
	Mode  backstore.TxMode

	mu        sync.Mutex
	cancelled bool
}

// NewTask creates a task with a fresh id. Scope and mode are fixed for the
// task's lifetime.
func NewTask(scope []string, mode backstore.TxMode) *Task {
	return &Task{ID: uuid.New(), Scope: scope, Mode: mode}
}

// Cancel marks the task cancelled. It has an effect only if the task has
// not yet been admitted to run; per §4.6/§5, cancellation is pre-start only.
// Cancel is called from whatever goroutine holds the task (often distinct
// from the one blocked in Run's admission wait), so cancelled is guarded by
// its own lock rather than relying on the caller to hold the runner's.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

func (t *Task) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Runner owns the set of currently-running tasks and admits new ones under
// the scheduling rule of §4.6.
type Runner struct {
	mu      sync.Mutex
	cond    *sync.Cond
	running []*Task
	log     *zap.Logger
}

// New creates a Runner. log may be nil, in which case a no-op logger is used.
func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{log: log}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Run admits task under the scheduling policy, then invokes fn once no
// conflicting task is running. It blocks the calling goroutine until fn
// returns (or the task is cancelled before admission).
func (r *Runner) Run(ctx context.Context, task *Task, fn func(context.Context) (any, error)) (any, error) {
	r.mu.Lock()
	if task.isCancelled() {
		r.mu.Unlock()
		return nil, dberrors.TaskCancelled()
	}
	for r.conflicts(task) {
		r.cond.Wait()
		if task.isCancelled() {
			r.mu.Unlock()
			return nil, dberrors.TaskCancelled()
		}
	}
	// Re-check immediately before admission: cancellation is only honoured
	// up to the instant the task actually starts running.
	if task.isCancelled() {
		r.mu.Unlock()
		return nil, dberrors.TaskCancelled()
	}
	r.running = append(r.running, task)
	r.mu.Unlock()

	r.log.Debug("task admitted", zap.String("task", task.ID.String()), zap.Strings("scope", task.Scope))

	result, err := fn(ctx)

	r.mu.Lock()
	r.removeRunning(task)
	r.mu.Unlock()
	r.cond.Broadcast()

	return result, err
}

// conflicts reports whether task may not yet start given what is currently
// running. Caller holds r.mu.
func (r *Runner) conflicts(task *Task) bool {
	for _, other := range r.running {
		if intersects(task.Scope, other.Scope) && (task.Mode == backstore.ReadWrite || other.Mode == backstore.ReadWrite) {
			return true
		}
	}
	return false
}

func (r *Runner) removeRunning(task *Task) {
	for i, t := range r.running {
		if t == task {
			r.running = append(r.running[:i], r.running[i+1:]...)
			return
		}
	}
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return true
		}
	}
	return false
}
