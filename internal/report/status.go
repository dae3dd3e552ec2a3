package report

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/firstrun/internal/protocol"
)

// StatusWriter streams signals to the host test runner as protocol lines.
type StatusWriter struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

func NewStatusWriter(w io.Writer, logger *slog.Logger) *StatusWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusWriter{w: w, logger: logger}
}

func (s *StatusWriter) Progress(p Progress) {
	s.write(&protocol.Line{
		Type:   protocol.TypeStatus,
		Code:   protocol.ResultOK,
		Bundle: map[string]string{protocol.KeyDismissedApp: p.App},
		At:     p.At,
	})
}

func (s *StatusWriter) Complete(c Completion) {
	line := &protocol.Line{
		Type:   protocol.TypeResult,
		Code:   protocol.ResultOK,
		Bundle: map[string]string{protocol.KeyCompleted: strings.Join(c.Completed, ",")},
		At:     time.Now(),
	}
	if !c.Succeeded() {
		line.Code = protocol.ResultCanceled
		line.Bundle[protocol.KeyErrorKind] = c.Kind
		if c.App != "" {
			line.Bundle[protocol.KeyApp] = c.App
		}
		if c.Phase != "" {
			line.Bundle[protocol.KeyPhase] = c.Phase
		}
		if c.Err != nil {
			line.Bundle[protocol.KeyError] = c.Err.Error()
		}
	}
	s.write(line)
}

func (s *StatusWriter) write(line *protocol.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := protocol.EncodeLine(s.w, line); err != nil {
		s.logger.Error("failed to write status line", "type", line.Type, "error", err)
	}
}
