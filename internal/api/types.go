package api

import "time"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	AppsLoaded    int    `json:"apps_loaded"`
}

// AppResponse describes one catalog entry.
type AppResponse struct {
	ID       string `json:"id"`
	Package  string `json:"package"`
	Activity string `json:"activity,omitempty"`
	Steps    int    `json:"steps"`
}

// BatchResponse is returned by GET /batches and GET /batches/{id}.
type BatchResponse struct {
	BatchID     string             `json:"batch_id"`
	Status      string             `json:"status"`
	Requested   []string           `json:"requested"`
	Serial      string             `json:"serial,omitempty"`
	ConfigHash  string             `json:"config_hash,omitempty"`
	ErrorKind   *string            `json:"error_kind,omitempty"`
	FailedApp   *string            `json:"failed_app,omitempty"`
	FailedPhase *string            `json:"failed_phase,omitempty"`
	LastError   *string            `json:"last_error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	DurationMS  int64              `json:"duration_ms"`
	Dismissed   []DismissedAppView `json:"dismissed,omitempty"`
}

type DismissedAppView struct {
	Position    int       `json:"position"`
	App         string    `json:"app"`
	DismissedAt time.Time `json:"dismissed_at"`
}

// BatchListResponse is returned by GET /batches.
type BatchListResponse struct {
	Batches []BatchResponse `json:"batches"`
}
