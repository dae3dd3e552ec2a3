// Package apps is the built-in catalog of first-run adapters. Each entry is a
// short script (launch, dismissal steps, exit) run against the host's device
// driver; the catalog is fixed at build time.
package apps

import (
	"fmt"
	"sort"
	"time"

	"github.com/mattjoyce/firstrun/internal/adapter"
	"github.com/mattjoyce/firstrun/internal/config"
)

// Action kinds for a dismissal step.
const (
	ActionKey  = "key"
	ActionTap  = "tap"
	ActionWait = "wait"
)

// Step is one dismissal action.
type Step struct {
	Action string        `json:"action"`
	Key    string        `json:"key,omitempty"`
	X      int           `json:"x,omitempty"`
	Y      int           `json:"y,omitempty"`
	Wait   time.Duration `json:"wait,omitempty"`
}

func (s Step) String() string {
	switch s.Action {
	case ActionKey:
		return "key " + s.Key
	case ActionTap:
		return fmt.Sprintf("tap %d,%d", s.X, s.Y)
	case ActionWait:
		return "wait " + s.Wait.String()
	}
	return s.Action
}

// Spec describes how to clear one app's first-run dialogs.
type Spec struct {
	ID       string `json:"id"`
	Package  string `json:"package"`
	Activity string `json:"activity,omitempty"`
	Steps    []Step `json:"steps"`
}

func key(k string) Step         { return Step{Action: ActionKey, Key: k} }
func wait(d time.Duration) Step { return Step{Action: ActionWait, Wait: d} }

// builtin is the fixed catalog. Settings has no adapter.
var builtin = []Spec{
	{
		ID:       "Chrome",
		Package:  "com.android.chrome",
		Activity: "com.google.android.apps.chrome.Main",
		// Accept terms, then decline sign-in.
		Steps: []Step{key("ENTER"), wait(2 * time.Second), key("TAB"), key("ENTER")},
	},
	{
		ID:       "GoogleCamera",
		Package:  "com.google.android.GoogleCamera",
		Activity: "com.android.camera.CameraLauncher",
		Steps:    []Step{key("ENTER")},
	},
	{
		ID:       "Gmail",
		Package:  "com.google.android.gm",
		Activity: "com.google.android.gm.ConversationListActivityGmail",
		Steps:    []Step{key("ENTER"), wait(time.Second), key("ENTER")},
	},
	{
		ID:       "Maps",
		Package:  "com.google.android.apps.maps",
		Activity: "com.google.android.maps.MapsActivity",
		Steps:    []Step{key("ENTER"), wait(time.Second), key("BACK")},
	},
	{
		ID:       "Photos",
		Package:  "com.google.android.apps.photos",
		Activity: "com.google.android.apps.photos.home.HomeActivity",
		Steps:    []Step{key("ENTER")},
	},
	{
		ID:      "PlayMovies",
		Package: "com.google.android.videos",
		Steps:   []Step{key("BACK")},
	},
	{
		ID:       "PlayMusic",
		Package:  "com.google.android.music",
		Activity: "com.android.music.activitymanagement.TopLevelActivity",
		Steps:    []Step{key("ENTER"), key("BACK")},
	},
	{
		ID:       "PlayStore",
		Package:  "com.android.vending",
		Activity: "com.android.vending.AssetBrowserActivity",
		Steps:    []Step{key("ENTER")},
	},
	{
		ID:       "YouTube",
		Package:  "com.google.android.youtube",
		Activity: "com.google.android.apps.youtube.app.WatchWhileActivity",
		Steps:    []Step{key("BACK")},
	},
}

// Catalog returns the built-in specs sorted by identifier.
func Catalog() []Spec {
	out := make([]Spec, len(builtin))
	copy(out, builtin)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Specs returns the catalog with config overrides applied. Overrides may only
// name catalog apps.
func Specs(overrides map[string]config.AdapterConf) ([]Spec, error) {
	specs := Catalog()
	index := make(map[string]int, len(specs))
	for i, s := range specs {
		index[s.ID] = i
	}

	for id, ov := range overrides {
		i, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("adapters.%s: no such app in catalog", id)
		}
		if ov.Package != "" {
			specs[i].Package = ov.Package
			// A new package invalidates the built-in activity.
			specs[i].Activity = ""
		}
		if ov.Activity != "" {
			specs[i].Activity = ov.Activity
		}
		if len(ov.Steps) > 0 {
			steps, err := convertSteps(ov.Steps)
			if err != nil {
				return nil, fmt.Errorf("adapters.%s: %w", id, err)
			}
			specs[i].Steps = steps
		}
	}
	return specs, nil
}

// NewRegistry builds the sealed adapter registry from the catalog.
func NewRegistry(overrides map[string]config.AdapterConf) (*adapter.Registry, error) {
	specs, err := Specs(overrides)
	if err != nil {
		return nil, err
	}
	return RegistryFor(specs)
}

// RegistryFor builds the sealed adapter registry from already resolved specs.
func RegistryFor(specs []Spec) (*adapter.Registry, error) {
	reg := adapter.NewRegistry()
	for _, s := range specs {
		if err := reg.Register(s.ID, Factory(s)); err != nil {
			return nil, err
		}
	}
	reg.Seal()
	return reg, nil
}

func convertSteps(in []config.Step) ([]Step, error) {
	out := make([]Step, 0, len(in))
	for i, s := range in {
		switch {
		case s.Key != "":
			out = append(out, key(s.Key))
		case len(s.Tap) == 2:
			out = append(out, Step{Action: ActionTap, X: s.Tap[0], Y: s.Tap[1]})
		case s.Wait > 0:
			out = append(out, wait(s.Wait))
		default:
			return nil, fmt.Errorf("steps[%d]: no action", i)
		}
	}
	return out, nil
}
