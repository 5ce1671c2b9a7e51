// SPDX-License-Identifier: GPL-3.0-or-later
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kjolsen/mail-ingest/domain"
	"github.com/kjolsen/mail-ingest/log"

	"github.com/sirupsen/logrus"
)

// FileStore persists one cursor per source identity as a small JSON file so
// an interrupted network scan can resume without re-fetching or skipping
// messages. Records are replaced atomically via a temp file and rename.
type FileStore struct {
	dir string
	l   *logrus.Logger
}

// DefaultDir is where cursors live unless the caller overrides the location.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	return filepath.Join(home, ".mail-ingest", "state"), nil
}

func NewFileStore(dir string) (*FileStore, error) {
	if len(strings.TrimSpace(dir)) == 0 {
		return nil, fmt.Errorf("state directory must not be empty")
	}

	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}

	return &FileStore{
		dir: dir,
		l:   log.Logger(log.LOG_STATE),
	}, nil
}

func (s *FileStore) Load(identity string) (*domain.Cursor, error) {
	raw, err := os.ReadFile(s.path(identity))
	if errors.Is(err, os.ErrNotExist) {
		s.l.WithField("identity", identity).Debug("No cursor on record, starting from the beginning")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read cursor: %w", err)
	}

	cursor := &domain.Cursor{}
	err = json.Unmarshal(raw, cursor)
	if err != nil {
		return nil, fmt.Errorf("could not decode cursor: %w", err)
	}

	s.l.WithFields(logrus.Fields{"identity": identity, "uidvalidity": cursor.UidValidity, "lastuid": cursor.LastUid}).Debug("Loaded cursor")
	return cursor, nil
}

func (s *FileStore) Save(identity string, cursor *domain.Cursor) error {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("could not encode cursor: %w", err)
	}

	target := s.path(identity)
	tmp, err := os.CreateTemp(s.dir, "cursor-*")
	if err != nil {
		return fmt.Errorf("could not create temp cursor file: %w", err)
	}

	_, err = tmp.Write(raw)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("could not write cursor: %w", err)
	}

	err = os.Rename(tmp.Name(), target)
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("could not replace cursor file: %w", err)
	}

	s.l.WithFields(logrus.Fields{"identity": identity, "uidvalidity": cursor.UidValidity, "lastuid": cursor.LastUid}).Debug("Persisted cursor")
	return nil
}

func (s *FileStore) path(identity string) string {
	return filepath.Join(s.dir, sanitize(identity)+".json")
}

// sanitize keeps source identities like "imap:mail.example.com:alice" usable
// as file names on every platform.
func sanitize(identity string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '-'
	}, identity)
}
