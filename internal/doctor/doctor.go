// Package doctor checks a firstrun configuration for problems that would
// only surface once a batch is running.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
	"strings"

	"github.com/mattjoyce/firstrun/internal/apps"
	"github.com/mattjoyce/firstrun/internal/config"
	"github.com/mattjoyce/firstrun/internal/dispatch"
	"github.com/mattjoyce/firstrun/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

type Doctor struct {
	cfg        *config.Config
	lookPath   func(string) (string, error)
	checkLocal func(string) error
}

func New(cfg *config.Config) *Doctor {
	return &Doctor{
		cfg:        cfg,
		lookPath:   exec.LookPath,
		checkLocal: storage.RequireLocalFilesystem,
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	catalog := d.validateAdapters(r)
	d.validateApps(r, catalog)
	d.validateDevice(r)
	d.validateState(r)
	d.warnAPIExposure(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateAdapters applies overrides to the catalog and returns the known ids.
func (d *Doctor) validateAdapters(r *Result) map[string]bool {
	known := make(map[string]bool)
	specs, err := apps.Specs(d.cfg.Adapters)
	if err != nil {
		d.addError(r, "adapters", "adapters", err.Error())
		specs = apps.Catalog()
	}
	for _, s := range specs {
		known[s.ID] = true
	}
	for id, ac := range d.cfg.Adapters {
		if !known[id] {
			continue
		}
		if ac.Package != "" && len(ac.Steps) == 0 {
			d.addWarning(r, "adapters", "adapters."+id+".steps",
				"package overridden without steps; the built-in steps were written for the default package")
		}
	}
	return known
}

// validateApps checks that every requested app resolves, so the batch cannot
// stop on an unrecognized application.
func (d *Doctor) validateApps(r *Result, known map[string]bool) {
	if strings.TrimSpace(d.cfg.Apps) == "" {
		d.addWarning(r, "apps", "apps", "no apps configured; pass --apps or set FIRSTRUN_APPS at run time")
		return
	}
	requested, err := dispatch.ParseRequest(d.cfg.Apps)
	if err != nil {
		d.addError(r, "apps", "apps", err.Error())
		return
	}
	seen := make(map[string]bool, len(requested))
	for i, id := range requested {
		field := fmt.Sprintf("apps[%d]", i)
		if !known[id] {
			msg := fmt.Sprintf("%q has no adapter", id)
			for k := range known {
				if strings.EqualFold(k, id) {
					msg += fmt.Sprintf(" (identifiers are case-sensitive; did you mean %q?)", k)
					break
				}
			}
			d.addError(r, "apps", field, msg)
			continue
		}
		if seen[id] {
			d.addWarning(r, "apps", field, fmt.Sprintf("%q is requested more than once", id))
		}
		seen[id] = true
	}
}

func (d *Doctor) validateDevice(r *Result) {
	if _, err := d.lookPath(d.cfg.Device.ADBPath); err != nil {
		d.addError(r, "device", "device.adb_path", fmt.Sprintf("adb not found: %v", err))
	}
	if d.cfg.Device.Serial == "" {
		d.addWarning(r, "device", "device.serial", "no serial set; adb fails when more than one device is attached")
	}
	if d.cfg.Device.Settle == 0 {
		d.addWarning(r, "device", "device.settle", "settle is 0; dialogs may not be drawn before the next step")
	}
}

func (d *Doctor) validateState(r *Result) {
	if err := d.checkLocal(d.cfg.State.Path); err != nil {
		d.addError(r, "state", "state.path", err.Error())
	}
}

func (d *Doctor) warnAPIExposure(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	host, _, err := net.SplitHostPort(d.cfg.API.Listen)
	if err != nil {
		d.addError(r, "api", "api.listen", fmt.Sprintf("invalid listen address: %v", err))
		return
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		d.addWarning(r, "api", "api.listen", fmt.Sprintf("API listens on non-loopback address %q", host))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
