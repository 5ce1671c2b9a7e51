// SPDX-License-Identifier: GPL-3.0-or-later
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kjolsen/mail-ingest/domain"
	"github.com/kjolsen/mail-ingest/log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

const (
	contentFile = "messages"
	indexDir    = "index"
	hooksDir    = "hooks"
	indexFile   = "mail.db"
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_messages",
			Up: []string{
				`CREATE TABLE messages (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					fingerprint TEXT NOT NULL,
					messageid TEXT,
					subject TEXT,
					sender TEXT,
					date TEXT,
					labels TEXT NOT NULL,
					flags TEXT NOT NULL,
					offset INTEGER NOT NULL,
					size INTEGER NOT NULL
				)`,
				`CREATE UNIQUE INDEX idx_messages_fingerprint ON messages (fingerprint)`,
			},
			Down: []string{
				`DROP TABLE messages`,
			},
		},
	},
}

// Store is the local indexing backend: an append-only content log holding the
// raw messages and a sqlite index keyed by content fingerprint. It answers
// the dedup question and commits index entries.
type Store struct {
	root    string
	db      *sqlx.DB
	content *os.File
	offset  int64

	l *logrus.Logger
}

// Open creates the store layout under root (content log, index directory,
// hooks directory) if needed and connects to the index database.
func Open(root string) (*Store, error) {
	l := log.Logger(log.LOG_STORE)

	for _, dir := range []string{root, filepath.Join(root, indexDir), filepath.Join(root, hooksDir)} {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return nil, fmt.Errorf("could not create store directory %s: %w", dir, err)
		}
	}

	content, err := os.OpenFile(filepath.Join(root, contentFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open content log: %w", err)
	}

	offset, err := content.Seek(0, 2)
	if err != nil {
		content.Close()
		return nil, fmt.Errorf("could not seek content log: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", filepath.Join(root, indexDir, indexFile))
	if err != nil {
		content.Close()
		return nil, fmt.Errorf("could not open index db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		content.Close()
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		content.Close()
		return nil, fmt.Errorf("could not set synchronous mode: %w", err)
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrations, migrate.Up)
	if err != nil {
		content.Close()
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	l.WithFields(logrus.Fields{"root": root, "migrations": appliedMigrations, "offset": offset}).Debug("Opened store")

	return &Store{
		root:    root,
		db:      db,
		content: content,
		offset:  offset,
		l:       l,
	}, nil
}

func (s *Store) Close() error {
	contentErr := s.content.Sync()
	if contentErr == nil {
		contentErr = s.content.Close()
	}

	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("could not close index db: %w", err)
	}
	if contentErr != nil {
		return fmt.Errorf("could not close content log: %w", contentErr)
	}

	s.l.Debug("Closed store")
	return nil
}

// Seen answers whether a fingerprint is already indexed.
func (s *Store) Seen(fingerprint string) (bool, error) {
	var id int64
	err := s.db.Get(
		&id,
		`SELECT id FROM messages WHERE fingerprint = ?`,
		fingerprint,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not query index: %w", err)
	}

	return true, nil
}

// Append writes raw message bytes to the end of the content log and returns
// their location.
func (s *Store) Append(raw []byte) (domain.Location, error) {
	n, err := s.content.Write(raw)
	if err != nil {
		return domain.Location{}, fmt.Errorf("could not append to content log: %w", err)
	}
	if n != len(raw) {
		return domain.Location{}, fmt.Errorf("short write to content log, wrote %d of %d bytes", n, len(raw))
	}

	location := domain.Location{Offset: s.offset, Size: int64(len(raw))}
	s.offset += int64(n)
	return location, nil
}

// Add commits one message to the index. The caller is expected to have
// checked Seen first; a duplicate fingerprint is rejected by the unique index.
func (s *Store) Add(m *domain.IndexedMessage) error {
	labels, err := json.Marshal(m.Labels)
	if err != nil {
		return fmt.Errorf("could not encode labels: %w", err)
	}
	flags, err := json.Marshal(m.Flags)
	if err != nil {
		return fmt.Errorf("could not encode flags: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO messages (fingerprint, messageid, subject, sender, date, labels, flags, offset, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Fingerprint, m.MessageId, m.Subject, m.From, m.Date, string(labels), string(flags), m.Location.Offset, m.Location.Size,
	)
	if err != nil {
		return fmt.Errorf("could not index message: %w", err)
	}

	s.l.WithFields(logrus.Fields{"fingerprint": m.Fingerprint, "offset": m.Location.Offset, "size": m.Location.Size}).Debug("Indexed message")
	return nil
}

// Count reports how many messages the index holds.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("could not count index: %w", err)
	}

	return count, nil
}
