package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/firstrun/internal/config"
	"github.com/mattjoyce/firstrun/internal/device"
	"github.com/mattjoyce/firstrun/internal/lock"
	"github.com/mattjoyce/firstrun/internal/log"
	"github.com/mattjoyce/firstrun/internal/protocol"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	stderrR, stderrW, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = stdoutW
	os.Stderr = stderrW

	var stdoutBytes, stderrBytes []byte
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); stdoutBytes, _ = io.ReadAll(stdoutR) }()
	go func() { defer wg.Done(); stderrBytes, _ = io.ReadAll(stderrR) }()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	wg.Wait()
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func runCaptured(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return captureOutputWithExitCode(t, func() int { return runCLI(args) })
}

// fakeDriver records device calls and fails any call naming failPkg.
type fakeDriver struct {
	mu      sync.Mutex
	calls   []string
	failPkg string
}

func (f *fakeDriver) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeDriver) Serial() string { return "fake-1" }

func (f *fakeDriver) Launch(_ context.Context, pkg, _ string) error {
	f.record("launch " + pkg)
	if pkg == f.failPkg {
		return &device.CommandError{Args: []string{"am", "start"}, Output: "Error: Activity not started", Err: errors.New("exit status 1")}
	}
	return nil
}

func (f *fakeDriver) PressKey(_ context.Context, key string) error {
	f.record("key " + key)
	return nil
}

func (f *fakeDriver) Tap(_ context.Context, x, y int) error {
	f.record(fmt.Sprintf("tap %d,%d", x, y))
	return nil
}

func (f *fakeDriver) ForceStop(_ context.Context, pkg string) error {
	f.record("force-stop " + pkg)
	return nil
}

func useFakeDriver(t *testing.T, d *fakeDriver) {
	t.Helper()
	orig := newDriver
	newDriver = func(*config.Config) device.Driver { return d }
	t.Cleanup(func() { newDriver = orig })
}

func writeConfig(t *testing.T, apps string) string {
	t.Helper()
	t.Setenv(config.EnvApps, "")
	os.Unsetenv(config.EnvApps)
	dir := t.TempDir()
	body := fmt.Sprintf(`service:
  log_level: error
state:
  path: %s
device:
  serial: fake-1
  settle: 1ms
apps: %q
`, filepath.Join(dir, "data", "firstrun.db"), apps)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func decodeStatus(t *testing.T, stdout string) []*protocol.Line {
	t.Helper()
	lines, err := protocol.DecodeStream(strings.NewReader(stdout))
	require.NoError(t, err, "stdout: %q", stdout)
	return lines
}

func TestRunAllAppsSucceed(t *testing.T) {
	d := &fakeDriver{}
	useFakeDriver(t, d)
	cfgPath := writeConfig(t, "PlayStore, YouTube")

	code, stdout, stderr := runCaptured(t, "run", "--config", cfgPath)
	require.Equal(t, 0, code, "stderr: %s", stderr)

	lines := decodeStatus(t, stdout)
	require.Len(t, lines, 3)
	assert.Equal(t, "PlayStore", lines[0].Bundle[protocol.KeyDismissedApp])
	assert.Equal(t, "YouTube", lines[1].Bundle[protocol.KeyDismissedApp])
	assert.True(t, lines[2].OK())
	assert.Equal(t, "PlayStore,YouTube", lines[2].Bundle[protocol.KeyCompleted])

	assert.Equal(t, []string{
		"launch com.android.vending", "key ENTER", "key HOME", "force-stop com.android.vending",
		"launch com.google.android.youtube", "key BACK", "key HOME", "force-stop com.google.android.youtube",
	}, d.calls)

	code, stdout, _ = runCaptured(t, "batch", "list", "--config", cfgPath, "--json")
	require.Equal(t, 0, code)
	var batches []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &batches))
	require.Len(t, batches, 1)
	assert.Equal(t, "succeeded", batches[0]["status"])

	id := batches[0]["batch_id"].(string)
	code, stdout, _ = runCaptured(t, "batch", "show", id, "--config", cfgPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "status:     succeeded")
	assert.Contains(t, stdout, "[1] YouTube dismissed")
}

func TestRunUnrecognizedAppFails(t *testing.T) {
	d := &fakeDriver{}
	useFakeDriver(t, d)
	cfgPath := writeConfig(t, "YouTube,Settings,PlayStore")

	code, stdout, _ := runCaptured(t, "run", "--config", cfgPath)
	assert.Equal(t, 1, code)

	lines := decodeStatus(t, stdout)
	require.Len(t, lines, 2)
	assert.Equal(t, "YouTube", lines[0].Bundle[protocol.KeyDismissedApp])
	result := lines[1]
	assert.False(t, result.OK())
	assert.Equal(t, "unrecognized_application", result.Bundle[protocol.KeyErrorKind])
	assert.Equal(t, "Settings", result.Bundle[protocol.KeyApp])

	for _, call := range d.calls {
		assert.NotContains(t, call, "com.android.vending")
	}
}

func TestRunPhaseFailure(t *testing.T) {
	d := &fakeDriver{failPkg: "com.google.android.youtube"}
	useFakeDriver(t, d)
	cfgPath := writeConfig(t, "YouTube,PlayStore")

	code, stdout, _ := runCaptured(t, "run", "--config", cfgPath)
	assert.Equal(t, 1, code)

	lines := decodeStatus(t, stdout)
	require.Len(t, lines, 1)
	assert.Equal(t, "lifecycle_phase_failed", lines[0].Bundle[protocol.KeyErrorKind])
	assert.Equal(t, "open", lines[0].Bundle[protocol.KeyPhase])
	assert.Contains(t, lines[0].Bundle[protocol.KeyError], "Activity not started")

	code, stdout, _ = runCaptured(t, "batch", "list", "--config", cfgPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "failed")
}

func TestRunBlankAppsIsConfigurationError(t *testing.T) {
	d := &fakeDriver{}
	useFakeDriver(t, d)

	for _, apps := range []string{"", "  ", "Chrome,,Maps"} {
		cfgPath := writeConfig(t, apps)
		code, stdout, _ := runCaptured(t, "run", "--config", cfgPath)
		assert.Equal(t, 1, code, "apps=%q", apps)

		lines := decodeStatus(t, stdout)
		require.Len(t, lines, 1)
		assert.Equal(t, "configuration_error", lines[0].Bundle[protocol.KeyErrorKind])
	}
	assert.Empty(t, d.calls)
}

func TestRunBusyDeviceWritesResultLine(t *testing.T) {
	d := &fakeDriver{}
	useFakeDriver(t, d)
	cfgPath := writeConfig(t, "YouTube")

	held, err := lock.AcquireDevice(filepath.Join(filepath.Dir(cfgPath), "data"), "fake-1")
	require.NoError(t, err)
	defer held.Release()

	code, stdout, stderr := runCaptured(t, "run", "--config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "busy")

	lines := decodeStatus(t, stdout)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Terminal())
	assert.False(t, lines[0].OK())
	assert.Equal(t, "environment_error", lines[0].Bundle[protocol.KeyErrorKind])
	assert.Contains(t, lines[0].Bundle[protocol.KeyError], "busy")
	assert.False(t, lines[0].At.IsZero())
	assert.Empty(t, d.calls)
}

func TestRunAppsFlagOverridesConfig(t *testing.T) {
	d := &fakeDriver{}
	useFakeDriver(t, d)
	cfgPath := writeConfig(t, "Bogus")

	code, stdout, stderr := runCaptured(t, "run", "--config", cfgPath, "--apps", "YouTube")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	lines := decodeStatus(t, stdout)
	require.Len(t, lines, 2)
	assert.True(t, lines[1].OK())
}

func TestAppsList(t *testing.T) {
	cfgPath := writeConfig(t, "YouTube")

	code, stdout, _ := runCaptured(t, "apps", "list", "--config", cfgPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Chrome")
	assert.Contains(t, stdout, "com.google.android.youtube")
	assert.NotContains(t, stdout, "Settings")

	code, stdout, _ = runCaptured(t, "apps", "list", "--config", cfgPath, "--json")
	require.Equal(t, 0, code)
	var specs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &specs))
	assert.Len(t, specs, 9)
}

func TestBatchShowMissing(t *testing.T) {
	cfgPath := writeConfig(t, "YouTube")
	code, _, stderr := runCaptured(t, "batch", "show", "nope", "--config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Batch not found")

	code, _, _ = runCaptured(t, "batch", "show", "--config", cfgPath)
	assert.Equal(t, 1, code)
}

func TestServeRequiresAPIKey(t *testing.T) {
	cfgPath := writeConfig(t, "YouTube")
	code, _, stderr := runCaptured(t, "serve", "--config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "api_key")
}

func TestUnknownCommand(t *testing.T) {
	code, stdout, stderr := runCaptured(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
	assert.Contains(t, stdout, "Usage:")
}

func TestHelp(t *testing.T) {
	code, stdout, _ := runCaptured(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "batch show <id>")

	code, stdout, _ = runCaptured(t, "run", "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "--apps")
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion, origCommit, origBuildDate := version, gitCommit, buildDate
	version, gitCommit, buildDate = v, commit, built
	t.Cleanup(func() {
		version, gitCommit, buildDate = origVersion, origCommit, origBuildDate
	})
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef0123", "2026-02-01T10:00:00+10:00")

	code, stdout, _ := runCaptured(t, "version", "--json")
	require.Equal(t, 0, code)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "0123456789ab", info.Commit)
	assert.Equal(t, "2026-02-01T00:00:00Z", info.BuildTime)
}

func TestRunVersionRejectsArgs(t *testing.T) {
	code, _, _ := runCaptured(t, "version", "extra")
	assert.Equal(t, 1, code)
}

func TestCheckReportsUnknownApp(t *testing.T) {
	cfgPath := writeConfig(t, "YouTube,Bogus")

	code, stdout, _ := runCaptured(t, "check", "--config", cfgPath, "--json")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, `"apps[1]"`)
	assert.Contains(t, stdout, `\"Bogus\" has no adapter`)
}
