// Package dispatch drives a batch of first-run dialog dismissals.
//
// The engine resolves each requested app identifier through the adapter
// registry, builds a fresh adapter bound to the host context and drives it
// through its three phases.
//
// Key features:
//   - Serial dispatch in request order (one adapter at a time)
//   - Fresh adapter instance per app, discarded after use
//   - One progress signal per app, only after open, dismiss and exit succeed
//   - Exactly one terminal completion signal per batch
//
// Error handling (every kind aborts the batch, nothing is retried):
//   - Empty request → ConfigurationError, no signals at all
//   - Unknown identifier → UnrecognizedApplication
//   - Factory failure → AdapterConstructionFailed
//   - open / dismiss / exit error → LifecyclePhaseFailed
//
// The engine never checks ctx itself. It is handed to adapter phases for their
// own device I/O; once a batch starts it runs to completion or abort.
package dispatch
