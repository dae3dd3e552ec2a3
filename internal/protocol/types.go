package protocol

import "time"

// Line types written to the host test runner.
const (
	TypeStatus = "status"
	TypeResult = "result"
)

// Result codes, matching the host runner's activity result convention.
const (
	ResultOK       = -1
	ResultCanceled = 0
)

// Bundle keys.
const (
	KeyDismissedApp = "dismissed-app"
	KeyErrorKind    = "error-kind"
	KeyApp          = "app"
	KeyPhase        = "phase"
	KeyError        = "error"
	KeyCompleted    = "completed"
)

// Line is one record of the status stream. A run produces zero or more
// status lines followed by exactly one result line.
type Line struct {
	Type   string            `json:"type"` // status | result
	Code   int               `json:"code"`
	Bundle map[string]string `json:"bundle"`
	At     time.Time         `json:"at"`
}

// Terminal reports whether the line ends the stream.
func (l *Line) Terminal() bool {
	return l.Type == TypeResult
}

// OK reports whether a result line signals success.
func (l *Line) OK() bool {
	return l.Type == TypeResult && l.Code == ResultOK
}
