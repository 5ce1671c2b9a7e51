// SPDX-License-Identifier: GPL-3.0-or-later
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kjolsen/mail-ingest/domain"
	"github.com/kjolsen/mail-ingest/log"

	"github.com/emersion/go-maildir"
	"github.com/sirupsen/logrus"
)

// MaildirSource walks one or more maildir roots. The folder name (the last
// path element of the root) becomes the label of every message under it, so
// this source provides its own labels.
type MaildirSource struct {
	dirs []string

	queue []maildirEntry
	pos   int

	l *logrus.Logger
}

type maildirEntry struct {
	msg    *maildir.Message
	folder string
}

func NewMaildir(dirs []string) *MaildirSource {
	return &MaildirSource{
		dirs: dirs,
		l:    log.Logger(log.LOG_SOURCE),
	}
}

func (s *MaildirSource) Load() error {
	for _, dir := range s.dirs {
		d := maildir.Dir(dir)
		folder := strings.ToLower(filepath.Base(dir))

		// Pull freshly delivered messages out of new/ first so they are part
		// of the scan.
		_, err := d.Unseen()
		if err != nil {
			return &domain.SourceUnavailableError{Source: dir, Err: err}
		}

		msgs, err := d.Messages()
		if err != nil {
			return &domain.SourceUnavailableError{Source: dir, Err: err}
		}

		sort.Slice(msgs, func(i, j int) bool { return msgs[i].Key() < msgs[j].Key() })
		for _, msg := range msgs {
			s.queue = append(s.queue, maildirEntry{msg: msg, folder: folder})
		}

		s.l.WithFields(logrus.Fields{"dir": dir, "messages": len(msgs)}).Debug("Scanned maildir")
	}

	return nil
}

func (s *MaildirSource) Done() bool {
	return s.pos >= len(s.queue)
}

func (s *MaildirSource) Next() (*domain.MessageUnit, error) {
	if s.Done() {
		return nil, domain.ErrSourceExhausted
	}

	entry := s.queue[s.pos]
	s.pos++

	r, err := entry.msg.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open maildir message %s: %w", entry.msg.Key(), err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read maildir message %s: %w", entry.msg.Key(), err)
	}

	return &domain.MessageUnit{
		Raw:         raw,
		Labels:      []string{entry.folder},
		Flags:       maildirFlags(entry.msg.Flags()),
		Description: fmt.Sprintf("maildir message %s in %s", entry.msg.Key(), entry.folder),
	}, nil
}

func (s *MaildirSource) Skip(n int) error {
	s.pos += n
	if s.pos > len(s.queue) {
		s.pos = len(s.queue)
	}
	return nil
}

func (s *MaildirSource) ProvidesLabels() bool {
	return true
}

func (s *MaildirSource) Finish() error {
	return nil
}

func maildirFlags(flags []maildir.Flag) []string {
	mapped := []string{}
	for _, f := range flags {
		switch f {
		case maildir.FlagSeen:
			mapped = append(mapped, FlagRead)
		case maildir.FlagFlagged:
			mapped = append(mapped, FlagFlagged)
		case maildir.FlagReplied:
			mapped = append(mapped, FlagReplied)
		case maildir.FlagDraft:
			mapped = append(mapped, FlagDraft)
		case maildir.FlagTrashed:
			mapped = append(mapped, FlagDeleted)
		}
	}
	return mapped
}
