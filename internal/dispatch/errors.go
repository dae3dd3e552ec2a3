package dispatch

import (
	"errors"
	"fmt"
)

// Kind classifies why a batch stopped.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindUnrecognizedApplication
	KindAdapterConstructionFailed
	KindLifecyclePhaseFailed
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration_error"
	case KindUnrecognizedApplication:
		return "unrecognized_application"
	case KindAdapterConstructionFailed:
		return "adapter_construction_failed"
	case KindLifecyclePhaseFailed:
		return "lifecycle_phase_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrConfiguration           = errors.New("configuration error")
	ErrUnrecognizedApplication = errors.New("unrecognized application")
	ErrAdapterConstruction     = errors.New("adapter construction failed")
	ErrLifecyclePhase          = errors.New("lifecycle phase failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindUnrecognizedApplication:
		return ErrUnrecognizedApplication
	case KindAdapterConstructionFailed:
		return ErrAdapterConstruction
	case KindLifecyclePhaseFailed:
		return ErrLifecyclePhase
	}
	return nil
}

// Phase names a step of the adapter lifecycle.
type Phase string

const (
	PhaseOpen    Phase = "open"
	PhaseDismiss Phase = "dismiss_initial_dialogs"
	PhaseExit    Phase = "exit"
)

// Error is the fatal error that stopped a batch.
type Error struct {
	Kind  Kind
	App   string // empty for configuration errors
	Phase Phase  // set for lifecycle failures only
	Err   error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConfiguration:
		if e.Err != nil {
			return fmt.Sprintf("configuration error: %v", e.Err)
		}
		return "configuration error"
	case KindUnrecognizedApplication:
		return fmt.Sprintf("unrecognized app %q", e.App)
	case KindAdapterConstructionFailed:
		return fmt.Sprintf("adapter for %q could not be constructed: %v", e.App, e.Err)
	case KindLifecyclePhaseFailed:
		return fmt.Sprintf("app %q failed during %s: %v", e.App, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind, so callers can write
// errors.Is(err, dispatch.ErrUnrecognizedApplication).
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of a dispatch error, or 0 if err is not one.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

func configurationError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Err: fmt.Errorf(format, args...)}
}
