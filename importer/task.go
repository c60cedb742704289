package importer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
)

// State is the progress of a task.
type State int32

const (
	// Pending tasks have been requested but not started.
	Pending State = iota
	// Triggered tasks have started and wait for a worker.
	Triggered
	// Importing tasks are being read, decoded and built.
	Importing
	// Done tasks have a result.
	Done
	// Failed tasks have an error.
	Failed
)

var stateStrings = [...]string{
	Pending:   "pending",
	Triggered: "triggered",
	Importing: "importing",
	Done:      "done",
	Failed:    "failed",
}

func (s State) String() string {
	if int(s) < len(stateStrings) {
		return stateStrings[s]
	}
	return "invalid"
}

// Finished returns whether the state is final.
func (s State) Finished() bool {
	return s == Done || s == Failed
}

// Task is the import of one file. A task is shared by every request for the
// same file.
type Task struct {
	Game schema.Game
	// Path is the cleaned in-engine path.
	Path string

	state atomic.Int32
	done  chan struct{}

	// Set before done is closed.
	root   *rszfile.Root
	err    error
	source string
	cached bool

	// The task whose result this task is waiting for, if any. Guarded by the
	// queue.
	waiting *Task

	finishOnce sync.Once
}

func newTask(game schema.Game, path string) *Task {
	return &Task{Game: game, Path: path, done: make(chan struct{})}
}

// State returns the current state of the task.
func (t *Task) State() State {
	return State(t.state.Load())
}

func (t *Task) setState(s State) {
	t.state.Store(int32(s))
}

// Done returns a channel closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait waits for the task to finish and returns its result. Wait returns
// early with the error of ctx if ctx is done first; the task itself keeps
// running.
func (t *Task) Wait(ctx context.Context) (*rszfile.Root, error) {
	select {
	case <-t.done:
		return t.root, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Source returns the file the task read, once the task has finished.
func (t *Task) Source() string {
	select {
	case <-t.done:
		return t.source
	default:
		return ""
	}
}

// FromCache returns whether the finished task was read from the import cache
// because its source was missing.
func (t *Task) FromCache() bool {
	select {
	case <-t.done:
		return t.cached
	default:
		return false
	}
}

func (t *Task) finish(root *rszfile.Root, err error) {
	t.finishOnce.Do(func() {
		t.root, t.err = root, err
		if err != nil {
			t.setState(Failed)
		} else {
			t.setState(Done)
		}
		close(t.done)
	})
}
