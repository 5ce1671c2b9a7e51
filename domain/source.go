// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/source.go -package=mocks . Source,Deliverer

// Source is the uniform pull contract over one mail origin. All five origins
// (single message, mbox, maildir, IMAP, Gmail) implement it so the ingestion
// loop is written once.
type Source interface {
	// Load performs expensive setup: opening files, dialing, authenticating.
	// Failure wraps a *SourceUnavailableError and is fatal to the run.
	Load() error

	// Done reports whether no further messages remain. Side-effect-free and
	// safe to call repeatedly.
	Done() bool

	// Next advances the cursor by exactly one message and returns it.
	// Returns ErrSourceExhausted when called while Done is true.
	Next() (*MessageUnit, error)

	// Skip advances the cursor past the next n messages without materializing
	// them where the protocol allows.
	Skip(n int) error

	// ProvidesLabels reports whether the source assigns its own label set
	// (maildir/IMAP folder semantics). When false the ingester unions in the
	// default label.
	ProvidesLabels() bool

	// Finish releases resources and, for resumable sources, flushes the final
	// cursor. Runs on every exit path and must be safe to call after a
	// failed Load.
	Finish() error
}

// Deliverer routes one message into the index, either directly against local
// storage or through the remote submission endpoint. Expected per-message
// failures are reported as OutcomeBad with a nil error; a non-nil error means
// the pipeline is unsafe to continue.
type Deliverer interface {
	Deliver(m *MessageUnit) (Outcome, error)
}
