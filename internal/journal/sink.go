package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattjoyce/firstrun/internal/report"
)

const sinkWriteTimeout = 5 * time.Second

// Sink records batch signals in the journal. Write failures are logged and
// never reach the dispatcher.
type Sink struct {
	journal *Journal
	batchID string
	logger  *slog.Logger
}

func (j *Journal) Sink(batchID string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{journal: j, batchID: batchID, logger: logger}
}

func (s *Sink) Progress(p report.Progress) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()
	if err := s.journal.RecordApp(ctx, s.batchID, p.App); err != nil {
		s.logger.Error("failed to journal dismissed app", "batch_id", s.batchID, "app", p.App, "error", err)
	}
}

func (s *Sink) Complete(c report.Completion) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()

	f := Finish{
		Status:    StatusSucceeded,
		ErrorKind: c.Kind,
		App:       c.App,
		Phase:     c.Phase,
		Err:       c.Err,
		Duration:  c.Duration,
	}
	if !c.Succeeded() {
		f.Status = StatusFailed
	}
	if err := s.journal.Finish(ctx, s.batchID, f); err != nil {
		s.logger.Error("failed to journal batch completion", "batch_id", s.batchID, "error", err)
	}
}
