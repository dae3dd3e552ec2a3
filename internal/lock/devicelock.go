// Package lock guarantees that at most one batch drives a device at a time,
// across processes.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// ErrDeviceBusy is returned when another process holds the device lock.
var ErrDeviceBusy = errors.New("device is busy")

// defaultSerial names the lock used when no serial is configured and adb
// picks the only attached device.
const defaultSerial = "default"

var unsafeSerialChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// DeviceLock is an flock(2) held on <dir>/locks/<serial>.lock. The file holds
// the owner's PID. Keep the lock alive by keeping the handle.
type DeviceLock struct {
	path string
	f    *os.File
}

// PathFor returns the lock file path for serial under stateDir.
func PathFor(stateDir, serial string) string {
	name := strings.TrimSpace(serial)
	if name == "" {
		name = defaultSerial
	}
	name = unsafeSerialChars.ReplaceAllString(name, "_")
	return filepath.Join(stateDir, "locks", name+".lock")
}

// AcquireDevice takes the exclusive, non-blocking lock for serial.
func AcquireDevice(stateDir, serial string) (*DeviceLock, error) {
	if stateDir == "" {
		return nil, fmt.Errorf("state directory is empty")
	}
	lockPath := PathFor(stateDir, serial)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			if pid, ok := ReadOwner(lockPath); ok {
				return nil, fmt.Errorf("%w: %s held by pid %d", ErrDeviceBusy, lockPath, pid)
			}
			return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, lockPath)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	fail := func(step string, err error) (*DeviceLock, error) {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	if err := f.Truncate(0); err != nil {
		return fail("truncate lock file", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fail("seek lock file", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fail("write pid", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync lock file", err)
	}

	return &DeviceLock{path: lockPath, f: f}, nil
}

// ReadOwner returns the PID recorded in a lock file.
func ReadOwner(lockPath string) (int, bool) {
	b, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func (l *DeviceLock) Path() string { return l.path }

func (l *DeviceLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
