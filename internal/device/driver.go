// Package device exposes the handful of device interactions first-run
// adapters need, and an adb-backed implementation of them.
package device

import (
	"context"
	"fmt"
)

// Driver is the capability adapters use to act on the device under test.
// Every call blocks until the device command finishes.
type Driver interface {
	Serial() string
	Launch(ctx context.Context, pkg, activity string) error
	PressKey(ctx context.Context, key string) error
	Tap(ctx context.Context, x, y int) error
	ForceStop(ctx context.Context, pkg string) error
}

// CommandError is returned when a device command exits unsuccessfully.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("device command %v failed: %v: %s", e.Args, e.Err, e.Output)
	}
	return fmt.Sprintf("device command %v failed: %v", e.Args, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
