// SPDX-License-Identifier: GPL-3.0-or-later
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kjolsen/mail-ingest/domain"
	"github.com/kjolsen/mail-ingest/log"

	"github.com/emersion/go-mbox"
	"github.com/sirupsen/logrus"
)

// MboxSource iterates the messages of one mbox file in file order. It keeps a
// one-message lookahead so Done stays side-effect-free even though mbox only
// signals its end by hitting EOF.
type MboxSource struct {
	path string

	file      *os.File
	reader    *mbox.Reader
	lookahead []byte
	exhausted bool
	index     int

	l *logrus.Logger
}

func NewMbox(path string) *MboxSource {
	return &MboxSource{
		path: path,
		l:    log.Logger(log.LOG_SOURCE),
	}
}

func (s *MboxSource) Load() error {
	file, err := os.Open(s.path)
	if err != nil {
		return &domain.SourceUnavailableError{Source: s.path, Err: err}
	}

	s.file = file
	s.reader = mbox.NewReader(file)
	s.l.WithField("path", s.path).Debug("Opened mbox")

	return s.advance()
}

func (s *MboxSource) Done() bool {
	return s.exhausted
}

func (s *MboxSource) Next() (*domain.MessageUnit, error) {
	if s.exhausted {
		return nil, domain.ErrSourceExhausted
	}

	unit := &domain.MessageUnit{
		Raw:         s.lookahead,
		Description: fmt.Sprintf("message %d in %s", s.index, s.path),
	}
	s.index++

	err := s.advance()
	if err != nil {
		return nil, err
	}

	return unit, nil
}

func (s *MboxSource) Skip(n int) error {
	for i := 0; i < n && !s.exhausted; i++ {
		s.index++
		err := s.advance()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *MboxSource) ProvidesLabels() bool {
	return false
}

func (s *MboxSource) Finish() error {
	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("could not close mbox: %w", err)
	}
	return nil
}

func (s *MboxSource) advance() error {
	msgReader, err := s.reader.NextMessage()
	if errors.Is(err, io.EOF) {
		s.lookahead = nil
		s.exhausted = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read message %d from mbox: %w", s.index, err)
	}

	raw, err := io.ReadAll(msgReader)
	if err != nil {
		return fmt.Errorf("could not read message %d from mbox: %w", s.index, err)
	}

	s.lookahead = raw
	return nil
}
