package journal

import (
	"errors"
	"time"
)

type Status string

const (
	StatusRunning     Status = "running"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

var ErrBatchNotFound = errors.New("batch not found")

// Batch is one recorded run of the dispatcher.
type Batch struct {
	ID          string        `json:"batch_id"`
	Requested   []string      `json:"requested"`
	Serial      string        `json:"serial,omitempty"`
	ConfigHash  string        `json:"config_hash,omitempty"`
	Status      Status        `json:"status"`
	ErrorKind   *string       `json:"error_kind,omitempty"`
	FailedApp   *string       `json:"failed_app,omitempty"`
	FailedPhase *string       `json:"failed_phase,omitempty"`
	LastError   *string       `json:"last_error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	Dismissed   []AppResult   `json:"dismissed,omitempty"`
}

// AppResult records one progress signal.
type AppResult struct {
	Position    int       `json:"position"`
	App         string    `json:"app"`
	DismissedAt time.Time `json:"dismissed_at"`
}

// BeginRequest describes a batch about to start.
type BeginRequest struct {
	Requested  []string
	Serial     string
	ConfigHash string
}

// Finish is the terminal record of a batch.
type Finish struct {
	Status    Status
	ErrorKind string
	App       string
	Phase     string
	Err       error
	Duration  time.Duration
}
