// Package adapter defines the application automation contract and the
// registry that binds application identifiers to adapter factories.
package adapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattjoyce/firstrun/internal/device"
)

//go:generate mockgen -destination=mocks/mock_adapter.go -package=mocks github.com/mattjoyce/firstrun/internal/adapter Adapter

// Adapter is a live, single-use automation handle for one application.
// Phases are called once each, in order: Open, DismissInitialDialogs, Exit.
type Adapter interface {
	Open(ctx context.Context) error
	DismissInitialDialogs(ctx context.Context) error
	Exit(ctx context.Context) error
}

// Host is the test context handed to every adapter at construction.
// The dispatcher passes it through untouched; it never mutates it.
type Host struct {
	Driver device.Driver
	Logger *slog.Logger
	// Settle is how long adapters wait after UI actions before the next one.
	Settle time.Duration
}

// Factory builds a new adapter instance bound to host.
type Factory func(host Host) (Adapter, error)

// Descriptor pairs an identifier with the factory registered for it.
type Descriptor struct {
	ID      string
	Factory Factory
}
