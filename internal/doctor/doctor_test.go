package doctor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/firstrun/internal/config"
)

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Apps = "Chrome,Maps"
	cfg.Device.Serial = "emulator-5554"
	cfg.State.Path = "/tmp/firstrun-test.db"
	return cfg
}

func newDoctor(cfg *config.Config) *Doctor {
	d := New(cfg)
	d.lookPath = func(p string) (string, error) { return "/usr/bin/" + p, nil }
	d.checkLocal = func(string) error { return nil }
	return d
}

func hasIssue(issues []Issue, category, field string) bool {
	for _, i := range issues {
		if i.Category == category && i.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := newDoctor(validConfig()).Validate()
	require.True(t, r.Valid, "errors: %v", r.Errors)
	assert.Empty(t, r.Warnings)
	assert.Equal(t, "Configuration valid.\n", FormatHuman(r))
}

func TestValidate_UnknownApp(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Apps = "Chrome,Settings,youtube"
	r := newDoctor(cfg).Validate()

	require.False(t, r.Valid)
	assert.True(t, hasIssue(r.Errors, "apps", "apps[1]"))
	assert.True(t, hasIssue(r.Errors, "apps", "apps[2]"))
	assert.Contains(t, r.Errors[1].Message, `did you mean "YouTube"`)
}

func TestValidate_BlankElement(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Apps = "Chrome,,Maps"
	r := newDoctor(cfg).Validate()
	assert.False(t, r.Valid)
	assert.True(t, hasIssue(r.Errors, "apps", "apps"))
}

func TestValidate_NoAppsIsWarning(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Apps = ""
	r := newDoctor(cfg).Validate()
	assert.True(t, r.Valid)
	assert.True(t, hasIssue(r.Warnings, "apps", "apps"))
}

func TestValidate_DuplicateApp(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Apps = "Chrome,Chrome"
	r := newDoctor(cfg).Validate()
	assert.True(t, r.Valid)
	assert.True(t, hasIssue(r.Warnings, "apps", "apps[1]"))
}

func TestValidate_OverrideUnknownAdapter(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Adapters = map[string]config.AdapterConf{"Settings": {Package: "com.android.settings"}}
	r := newDoctor(cfg).Validate()
	assert.False(t, r.Valid)
	assert.True(t, hasIssue(r.Errors, "adapters", "adapters"))
}

func TestValidate_OverridePackageWithoutSteps(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Adapters = map[string]config.AdapterConf{"Maps": {Package: "com.example.maps"}}
	r := newDoctor(cfg).Validate()
	assert.True(t, r.Valid)
	assert.True(t, hasIssue(r.Warnings, "adapters", "adapters.Maps.steps"))
}

func TestValidate_Device(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Device.Serial = ""
	cfg.Device.Settle = 0
	d := newDoctor(cfg)
	d.lookPath = func(string) (string, error) { return "", errors.New("executable file not found in $PATH") }
	r := d.Validate()

	assert.False(t, r.Valid)
	assert.True(t, hasIssue(r.Errors, "device", "device.adb_path"))
	assert.True(t, hasIssue(r.Warnings, "device", "device.serial"))
	assert.True(t, hasIssue(r.Warnings, "device", "device.settle"))
}

func TestValidate_NetworkState(t *testing.T) {
	t.Parallel()
	d := newDoctor(validConfig())
	d.checkLocal = func(string) error { return errors.New(`"/mnt/nfs/x.db" is on network filesystem "nfs"`) }
	r := d.Validate()
	assert.False(t, r.Valid)
	assert.True(t, hasIssue(r.Errors, "state", "state.path"))
}

func TestValidate_APIExposure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		listen  string
		warn    bool
		invalid bool
	}{
		{listen: "127.0.0.1:8090"},
		{listen: "localhost:8090"},
		{listen: "[::1]:8090"},
		{listen: "0.0.0.0:8090", warn: true},
		{listen: ":8090", warn: true},
		{listen: "nonsense", invalid: true},
	}
	for _, tt := range tests {
		cfg := validConfig()
		cfg.API = config.APIConfig{Enabled: true, Listen: tt.listen, APIKey: "k"}
		r := newDoctor(cfg).Validate()
		assert.Equal(t, !tt.invalid, r.Valid, tt.listen)
		assert.Equal(t, tt.warn, hasIssue(r.Warnings, "api", "api.listen"), tt.listen)
	}
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "apps", Field: "apps[0]", Message: `"X" has no adapter`}},
		Warnings: []Issue{{Category: "device", Message: "no serial"}},
	}
	out := FormatHuman(r)
	assert.True(t, strings.HasPrefix(out, "Configuration invalid (1 error(s), 1 warning(s))"))
	assert.Contains(t, out, `ERROR [apps] apps[0]: "X" has no adapter`)
	assert.Contains(t, out, "WARN  [device] no serial")

	js, err := FormatJSON(r)
	require.NoError(t, err)
	assert.Contains(t, js, `"valid": false`)
}

func TestValidConfigDefaultsHaveSettle(t *testing.T) {
	assert.Equal(t, time.Second, validConfig().Device.Settle)
}
