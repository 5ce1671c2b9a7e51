// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"errors"
	"fmt"
)

// ErrSourceExhausted is returned by Source.Next when called past the end of
// the sequence, which is a contract violation by the caller.
var ErrSourceExhausted = errors.New("source is exhausted")

// SourceUnavailableError means the origin could not be opened or
// authenticated. It is fatal and aborts a run before any message is pulled.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// InvalidMessageError marks a message that could not be parsed into a
// structured form. It is expected noise in real-world corpora and must never
// abort a run; the ingester counts it as bad and moves on.
type InvalidMessageError struct {
	Reason string
	Err    error
}

func (e *InvalidMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid message: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid message: %s", e.Reason)
}

func (e *InvalidMessageError) Unwrap() error {
	return e.Err
}
