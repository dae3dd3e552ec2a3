package apps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/firstrun/internal/adapter"
	"github.com/mattjoyce/firstrun/internal/device"
)

// ErrPhaseOrder is returned when a phase is called out of order or on an
// abandoned instance.
var ErrPhaseOrder = errors.New("adapter phase called out of order")

type state int

const (
	stateCreated state = iota
	stateOpened
	stateDismissed
	stateExited
	stateAbandoned
)

// Factory returns the adapter factory for spec. Construction fails when the
// host has no device driver or the app has no package.
func Factory(spec Spec) adapter.Factory {
	return func(host adapter.Host) (adapter.Adapter, error) {
		if host.Driver == nil {
			return nil, errors.New("host has no device driver")
		}
		if spec.Package == "" {
			return nil, fmt.Errorf("app %q has no package", spec.ID)
		}
		logger := host.Logger
		if logger == nil {
			logger = slog.Default()
		}
		return &scripted{
			spec:   spec,
			driver: host.Driver,
			settle: host.Settle,
			logger: logger.With("app", spec.ID),
		}, nil
	}
}

// scripted drives one app through launch, dismissal steps and exit.
type scripted struct {
	spec   Spec
	driver device.Driver
	settle time.Duration
	logger *slog.Logger
	state  state
}

func (s *scripted) Open(ctx context.Context) error {
	return s.advance(stateCreated, stateOpened, func() error {
		s.logger.Debug("launching", "package", s.spec.Package, "activity", s.spec.Activity)
		if err := s.driver.Launch(ctx, s.spec.Package, s.spec.Activity); err != nil {
			return err
		}
		return sleep(ctx, s.settle)
	})
}

func (s *scripted) DismissInitialDialogs(ctx context.Context) error {
	return s.advance(stateOpened, stateDismissed, func() error {
		for i, step := range s.spec.Steps {
			s.logger.Debug("dismissal step", "index", i, "step", step.String())
			if err := s.do(ctx, step); err != nil {
				return fmt.Errorf("step %d (%s): %w", i, step, err)
			}
		}
		return nil
	})
}

func (s *scripted) Exit(ctx context.Context) error {
	return s.advance(stateDismissed, stateExited, func() error {
		if err := s.driver.PressKey(ctx, "HOME"); err != nil {
			return err
		}
		return s.driver.ForceStop(ctx, s.spec.Package)
	})
}

func (s *scripted) do(ctx context.Context, step Step) error {
	var err error
	switch step.Action {
	case ActionKey:
		err = s.driver.PressKey(ctx, step.Key)
	case ActionTap:
		err = s.driver.Tap(ctx, step.X, step.Y)
	case ActionWait:
		return sleep(ctx, step.Wait)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	if err != nil {
		return err
	}
	return sleep(ctx, s.settle)
}

// advance runs fn if the instance is in from, then moves it to to. Any
// failure abandons the instance.
func (s *scripted) advance(from, to state, fn func() error) error {
	if s.state != from {
		return ErrPhaseOrder
	}
	if err := fn(); err != nil {
		s.state = stateAbandoned
		return err
	}
	s.state = to
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
