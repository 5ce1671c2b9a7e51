// SPDX-License-Identifier: GPL-3.0-or-later
package source

import (
	"fmt"
	"io"

	"github.com/kjolsen/mail-ingest/domain"
)

// SingleSource produces exactly one message read from a stream, typically
// standard input.
type SingleSource struct {
	in          io.Reader
	description string

	raw      []byte
	consumed bool
}

func NewSingle(in io.Reader, description string) *SingleSource {
	return &SingleSource{
		in:          in,
		description: description,
	}
}

func (s *SingleSource) Load() error {
	raw, err := io.ReadAll(s.in)
	if err != nil {
		return &domain.SourceUnavailableError{Source: s.description, Err: err}
	}
	if len(raw) == 0 {
		return &domain.SourceUnavailableError{Source: s.description, Err: fmt.Errorf("no message bytes")}
	}

	s.raw = raw
	return nil
}

func (s *SingleSource) Done() bool {
	return s.consumed
}

func (s *SingleSource) Next() (*domain.MessageUnit, error) {
	if s.consumed {
		return nil, domain.ErrSourceExhausted
	}

	s.consumed = true
	return &domain.MessageUnit{
		Raw:         s.raw,
		Description: s.description,
	}, nil
}

func (s *SingleSource) Skip(n int) error {
	if n > 0 {
		s.consumed = true
	}
	return nil
}

func (s *SingleSource) ProvidesLabels() bool {
	return false
}

func (s *SingleSource) Finish() error {
	return nil
}
