// Package report carries batch progress from the dispatcher to whoever is
// watching: the host test runner, the event hub, the journal.
package report

import (
	"sync"
	"time"
)

// Status is the terminal state of a batch.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// KindEnvironment marks a batch that could not start because the host
// environment was unusable (device busy, state directory unavailable).
const KindEnvironment = "environment_error"

// Progress is emitted once per app, after all of its phases succeeded.
// It is a keepalive, not a result.
type Progress struct {
	App string
	At  time.Time
}

// Completion is the single authoritative result of a batch.
type Completion struct {
	Status    Status
	Completed []string
	Duration  time.Duration

	// Set on failure only.
	Kind  string
	App   string
	Phase string
	Err   error
}

// Succeeded reports whether the batch finished without error.
func (c Completion) Succeeded() bool {
	return c.Status == StatusSucceeded
}

// Sink receives progress signals and exactly one completion per batch.
// Calls are fire-and-forget; sinks handle their own failures.
type Sink interface {
	Progress(p Progress)
	Complete(c Completion)
}

// Multi fans every signal out to each sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Progress(p Progress) {
	for _, s := range m {
		s.Progress(p)
	}
}

func (m multi) Complete(c Completion) {
	for _, s := range m {
		s.Complete(c)
	}
}

// Discard drops every signal.
var Discard Sink = discard{}

type discard struct{}

func (discard) Progress(Progress)   {}
func (discard) Complete(Completion) {}

// Signal is one recorded sink call. Exactly one of Progress or Completion is set.
type Signal struct {
	Progress   *Progress
	Completion *Completion
}

// Recorder keeps every signal in arrival order.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

func (r *Recorder) Progress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, Signal{Progress: &p})
}

func (r *Recorder) Complete(c Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, Signal{Completion: &c})
}

// Signals returns a copy of the recorded signals.
func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Signal(nil), r.signals...)
}

// ProgressApps returns the app of every progress signal, in order.
func (r *Recorder) ProgressApps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var apps []string
	for _, s := range r.signals {
		if s.Progress != nil {
			apps = append(apps, s.Progress.App)
		}
	}
	return apps
}

// Completions returns every recorded completion.
func (r *Recorder) Completions() []Completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Completion
	for _, s := range r.signals {
		if s.Completion != nil {
			out = append(out, *s.Completion)
		}
	}
	return out
}
