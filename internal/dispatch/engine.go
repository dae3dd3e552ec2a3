package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattjoyce/firstrun/internal/adapter"
	"github.com/mattjoyce/firstrun/internal/log"
	"github.com/mattjoyce/firstrun/internal/report"
)

// Resolver is the registry surface the engine needs.
type Resolver interface {
	Resolve(id string) (adapter.Factory, error)
	Instantiate(id string, f adapter.Factory, host adapter.Host) (adapter.Adapter, error)
}

// Outcome summarizes a finished batch.
type Outcome struct {
	Requested []string
	Completed []string
	Duration  time.Duration
	Err       *Error // nil on success
}

// Succeeded reports whether every requested app completed.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Err == nil
}

// Engine runs batches one at a time against a registry.
type Engine struct {
	registry Resolver
	sink     report.Sink
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Engine. A nil sink discards signals.
func New(registry Resolver, sink report.Sink) *Engine {
	if sink == nil {
		sink = report.Discard
	}
	return &Engine{
		registry: registry,
		sink:     sink,
		logger:   log.WithComponent("dispatch"),
		now:      time.Now,
	}
}

// WithLogger replaces the engine logger.
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	e.logger = l
	return e
}

// RunBatch dispatches requested apps in order. It returns an error only for
// an empty request, which is rejected before any signal is emitted; every
// other failure is reported through the sink's completion and Outcome.Err.
func (e *Engine) RunBatch(ctx context.Context, requested []string, host adapter.Host) (*Outcome, error) {
	if len(requested) == 0 {
		err := configurationError("no apps requested")
		e.logger.Error("batch rejected", "error", err)
		return nil, err
	}

	start := e.now()
	out := &Outcome{Requested: append([]string(nil), requested...)}
	e.logger.Info("batch started", "apps", requested)

	for _, app := range requested {
		if derr := e.runApp(ctx, app, host); derr != nil {
			out.Err = derr
			break
		}
		out.Completed = append(out.Completed, app)
		e.sink.Progress(report.Progress{App: app, At: e.now()})
	}
	out.Duration = e.now().Sub(start)

	e.sink.Complete(completion(out))
	if out.Err != nil {
		e.logger.Error("batch failed",
			"kind", out.Err.Kind.String(),
			"app", out.Err.App,
			"phase", string(out.Err.Phase),
			"completed", len(out.Completed),
			"error", out.Err,
		)
	} else {
		e.logger.Info("batch completed", "completed", len(out.Completed), "duration_ms", out.Duration.Milliseconds())
	}
	return out, nil
}

// runApp resolves, constructs and drives a single app. The instance is
// abandoned on any failure.
func (e *Engine) runApp(ctx context.Context, app string, host adapter.Host) *Error {
	appLogger := e.logger.With("app", app)
	appLogger.Info("dismissing dialogs for app")

	factory, err := e.registry.Resolve(app)
	if err != nil {
		return &Error{Kind: KindUnrecognizedApplication, App: app, Err: err}
	}

	inst, err := e.registry.Instantiate(app, factory, host)
	if err != nil {
		return &Error{Kind: KindAdapterConstructionFailed, App: app, Err: err}
	}

	phases := []struct {
		name Phase
		fn   func(context.Context) error
	}{
		{PhaseOpen, inst.Open},
		{PhaseDismiss, inst.DismissInitialDialogs},
		{PhaseExit, inst.Exit},
	}
	for _, p := range phases {
		began := e.now()
		if err := p.fn(ctx); err != nil {
			return &Error{Kind: KindLifecyclePhaseFailed, App: app, Phase: p.name, Err: err}
		}
		appLogger.Debug("phase complete", "phase", string(p.name), "duration_ms", e.now().Sub(began).Milliseconds())
	}
	return nil
}

func completion(out *Outcome) report.Completion {
	c := report.Completion{
		Status:    report.StatusSucceeded,
		Completed: append([]string(nil), out.Completed...),
		Duration:  out.Duration,
	}
	if out.Err != nil {
		c.Status = report.StatusFailed
		c.Kind = out.Err.Kind.String()
		c.App = out.Err.App
		c.Phase = string(out.Err.Phase)
		c.Err = out.Err.Err
	}
	return c
}
