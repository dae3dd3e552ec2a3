package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// maxOutputBytes caps the command output kept on a CommandError.
	maxOutputBytes = 4 * 1024

	defaultCommandTimeout = 30 * time.Second
)

// Runner executes a single command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// ADB drives an Android device through `adb -s <serial> shell ...`.
type ADB struct {
	serial  string
	adbPath string
	timeout time.Duration
	runner  Runner
	logger  *slog.Logger
}

// ADBOption customizes an ADB driver.
type ADBOption func(*ADB)

// WithRunner replaces the command runner (used by tests).
func WithRunner(r Runner) ADBOption {
	return func(a *ADB) { a.runner = r }
}

// WithCommandTimeout bounds each individual adb invocation.
func WithCommandTimeout(d time.Duration) ADBOption {
	return func(a *ADB) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l *slog.Logger) ADBOption {
	return func(a *ADB) { a.logger = l }
}

// NewADB creates a driver for the given serial. An empty serial targets the
// only attached device.
func NewADB(adbPath, serial string, opts ...ADBOption) *ADB {
	if adbPath == "" {
		adbPath = "adb"
	}
	a := &ADB{
		serial:  serial,
		adbPath: adbPath,
		timeout: defaultCommandTimeout,
		runner:  ExecRunner{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ADB) Serial() string { return a.serial }

// Launch starts pkg, using activity when given and the launcher intent otherwise.
func (a *ADB) Launch(ctx context.Context, pkg, activity string) error {
	if pkg == "" {
		return errors.New("launch: package is empty")
	}
	if activity == "" {
		return a.shell(ctx, "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	}
	component := pkg + "/" + activity
	return a.shell(ctx, "am", "start", "-W", "-n", component)
}

// PressKey sends a key event. Names without the KEYCODE_ prefix are accepted.
func (a *ADB) PressKey(ctx context.Context, key string) error {
	code, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return a.shell(ctx, "input", "keyevent", code)
}

func (a *ADB) Tap(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("tap: negative coordinate (%d,%d)", x, y)
	}
	return a.shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
}

func (a *ADB) ForceStop(ctx context.Context, pkg string) error {
	if pkg == "" {
		return errors.New("force-stop: package is empty")
	}
	return a.shell(ctx, "am", "force-stop", pkg)
}

func (a *ADB) shell(ctx context.Context, args ...string) error {
	full := make([]string, 0, len(args)+3)
	if a.serial != "" {
		full = append(full, "-s", a.serial)
	}
	full = append(full, "shell")
	full = append(full, args...)

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.logger.Debug("adb command", "serial", a.serial, "args", full)
	out, err := a.runner.Run(cctx, a.adbPath, full...)
	if err == nil && strings.Contains(out, "Error:") {
		// am start reports failures on stdout with a zero exit status.
		err = errors.New("command reported an error")
	}
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v: %w", a.timeout, err)
		}
		return &CommandError{Args: full, Output: truncate(strings.TrimSpace(out)), Err: err}
	}
	return nil
}

func normalizeKey(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return "", errors.New("key is empty")
	}
	if _, err := strconv.Atoi(key); err == nil {
		return key, nil
	}
	if !strings.HasPrefix(key, "KEYCODE_") {
		key = "KEYCODE_" + key
	}
	return key, nil
}

func truncate(s string) string {
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes]
	}
	return s
}
