// SPDX-License-Identifier: GPL-3.0-or-later
package source

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kjolsen/mail-ingest/domain"
	"github.com/kjolsen/mail-ingest/log"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

const (
	// FetchBatchSize bounds how many full bodies a single UID FETCH pulls.
	FetchBatchSize = 50

	gmailHost        = "imap.gmail.com:993"
	gmailAllMail     = "[Gmail]/All Mail"
	gmailLabelsItem  = imap.FetchItem("X-GM-LABELS")
	DefaultImapPort  = "993"
	DefaultImapInbox = "INBOX"
)

// ImapSource scans one folder of an IMAP account in ascending UID order. The
// scan position is persisted through a cursor store so an interrupted run
// resumes where it stopped, guarded by the folder's UIDVALIDITY. The same
// implementation drives Gmail accounts, where labels come from the X-GM-LABELS
// fetch item instead of the folder name.
type ImapSource struct {
	host   string
	user   string
	folder string
	gmail  bool

	creds   domain.CredentialProvider
	cursors domain.CursorStore

	conn        *client.Client
	uidValidity uint32
	uids        []uint32
	pos         int
	buffer      []fetched
	inflightUid uint32
	lastUid     uint32
	flushedUid  uint32
	finished    bool

	l *logrus.Logger
}

type fetched struct {
	uid  uint32
	unit *domain.MessageUnit
}

func NewImap(host, user, folder string, creds domain.CredentialProvider, cursors domain.CursorStore) *ImapSource {
	if !strings.Contains(host, ":") {
		host = host + ":" + DefaultImapPort
	}
	if len(folder) == 0 {
		folder = DefaultImapInbox
	}

	return &ImapSource{
		host:    host,
		user:    user,
		folder:  folder,
		creds:   creds,
		cursors: cursors,
		l:       log.Logger(log.LOG_SOURCE),
	}
}

// NewGmail scans a Gmail account over IMAP. All mail is reachable through the
// All Mail folder, and per-message Gmail labels replace folder labels.
func NewGmail(user string, creds domain.CredentialProvider, cursors domain.CursorStore) *ImapSource {
	s := NewImap(gmailHost, user, gmailAllMail, creds, cursors)
	s.gmail = true
	return s
}

// Identity is the stable key this source persists its cursor under.
func (s *ImapSource) Identity() string {
	if s.gmail {
		return "gmail:" + s.user
	}
	return "imap:" + s.host + ":" + s.user
}

func (s *ImapSource) Load() error {
	password, err := s.creds.Password(fmt.Sprintf("Password for %s@%s: ", s.user, s.host))
	if err != nil {
		return &domain.SourceUnavailableError{Source: s.Identity(), Err: err}
	}

	conn, err := client.DialTLS(s.host, nil)
	if err != nil {
		return &domain.SourceUnavailableError{Source: s.Identity(), Err: fmt.Errorf("could not dial: %w", err)}
	}
	s.conn = conn

	err = conn.Login(s.user, password)
	if err != nil {
		return &domain.SourceUnavailableError{Source: s.Identity(), Err: fmt.Errorf("could not login: %w", err)}
	}

	mbox, err := conn.Select(s.folder, true)
	if err != nil {
		return &domain.SourceUnavailableError{Source: s.Identity(), Err: fmt.Errorf("could not select %s: %w", s.folder, err)}
	}
	s.uidValidity = mbox.UidValidity

	uids, err := conn.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return &domain.SourceUnavailableError{Source: s.Identity(), Err: fmt.Errorf("could not list uids: %w", err)}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	s.uids = uids

	err = s.resume()
	if err != nil {
		return &domain.SourceUnavailableError{Source: s.Identity(), Err: err}
	}

	s.l.WithFields(logrus.Fields{"identity": s.Identity(), "folder": s.folder, "remaining": len(s.uids) - s.pos}).Info("Connected to mail server")
	return nil
}

// resume fast-forwards past everything a previous run already processed, as
// long as the server has not renumbered the folder.
func (s *ImapSource) resume() error {
	if s.cursors == nil {
		return nil
	}

	cursor, err := s.cursors.Load(s.Identity())
	if err != nil {
		return fmt.Errorf("could not load cursor: %w", err)
	}
	if cursor == nil {
		return nil
	}

	if cursor.UidValidity != s.uidValidity {
		s.l.WithFields(logrus.Fields{"identity": s.Identity(), "was": cursor.UidValidity, "now": s.uidValidity}).Warn("Uid validity changed, rescanning folder from the beginning")
		return nil
	}

	for s.pos < len(s.uids) && s.uids[s.pos] <= cursor.LastUid {
		s.pos++
	}
	s.lastUid = cursor.LastUid
	s.flushedUid = cursor.LastUid

	s.l.WithFields(logrus.Fields{"identity": s.Identity(), "lastuid": cursor.LastUid, "skipped": s.pos}).Info("Resuming from persisted cursor")
	return nil
}

func (s *ImapSource) Done() bool {
	return len(s.buffer) == 0 && s.pos >= len(s.uids)
}

func (s *ImapSource) Next() (*domain.MessageUnit, error) {
	if s.Done() {
		return nil, domain.ErrSourceExhausted
	}

	s.confirm()

	if len(s.buffer) == 0 {
		err := s.fetchBatch()
		if err != nil {
			return nil, err
		}
	}

	next := s.buffer[0]
	s.buffer = s.buffer[1:]
	s.inflightUid = next.uid
	return next.unit, nil
}

// confirm promotes the most recent hand-out into the flushable cursor. A
// handed-out message may still be in flight, so it only counts as processed
// once the sequential loop comes back for more. A message that was pulled but
// never delivered is re-fetched on resume instead of being skipped.
func (s *ImapSource) confirm() {
	if s.inflightUid != 0 {
		s.lastUid = s.inflightUid
		s.inflightUid = 0
	}
}

// Skip advances the scan position without fetching message bodies, which is
// the whole point of skipping on a rate-limited network source.
func (s *ImapSource) Skip(n int) error {
	s.confirm()

	for n > 0 && len(s.buffer) > 0 {
		s.lastUid = s.buffer[0].uid
		s.buffer = s.buffer[1:]
		n--
	}

	for n > 0 && s.pos < len(s.uids) {
		s.lastUid = s.uids[s.pos]
		s.pos++
		n--
	}

	return s.flushCursor()
}

func (s *ImapSource) ProvidesLabels() bool {
	return true
}

func (s *ImapSource) Finish() error {
	if s.finished {
		return nil
	}
	s.finished = true

	flushErr := s.flushCursor()

	if s.conn != nil {
		err := s.conn.Logout()
		if err != nil && flushErr == nil {
			flushErr = fmt.Errorf("could not logout: %w", err)
		}
		s.conn = nil
	}

	return flushErr
}

func (s *ImapSource) fetchBatch() error {
	// Everything handed out so far has been fully processed by the time the
	// loop asks for more, so a batch boundary is a safe flush point.
	err := s.flushCursor()
	if err != nil {
		return err
	}

	end := s.pos + FetchBatchSize
	if end > len(s.uids) {
		end = len(s.uids)
	}
	batch := s.uids[s.pos:end]
	s.pos = end

	seqset := &imap.SeqSet{}
	seqset.AddNum(batch...)

	section := &imap.BodySectionName{
		Peek: true,
	}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchFlags, imap.FetchUid}
	if s.gmail {
		items = append(items, gmailLabelsItem)
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.UidFetch(seqset, items, messages)
	}()

	fetchedBatch := []fetched{}
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			return fmt.Errorf("server returned no body for uid %d", msg.Uid)
		}

		raw, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("could not read body for uid %d: %w", msg.Uid, err)
		}

		fetchedBatch = append(
			fetchedBatch,
			fetched{
				uid: msg.Uid,
				unit: &domain.MessageUnit{
					Raw:         raw,
					Labels:      s.labelsFor(msg),
					Flags:       imapFlags(msg.Flags),
					Description: fmt.Sprintf("uid %d from %s", msg.Uid, s.Identity()),
				},
			},
		)
	}

	err = <-done
	if err != nil {
		return fmt.Errorf("could not fetch batch: %w", err)
	}

	// Servers may answer out of order; the loop promises source order.
	sort.Slice(fetchedBatch, func(i, j int) bool { return fetchedBatch[i].uid < fetchedBatch[j].uid })
	s.buffer = fetchedBatch

	s.l.WithFields(logrus.Fields{"identity": s.Identity(), "batch": len(fetchedBatch)}).Debug("Fetched batch")
	return nil
}

func (s *ImapSource) flushCursor() error {
	if s.cursors == nil || s.lastUid == s.flushedUid {
		return nil
	}

	err := s.cursors.Save(s.Identity(), &domain.Cursor{UidValidity: s.uidValidity, LastUid: s.lastUid})
	if err != nil {
		return fmt.Errorf("could not persist cursor: %w", err)
	}

	s.flushedUid = s.lastUid
	return nil
}

func (s *ImapSource) labelsFor(msg *imap.Message) []string {
	if !s.gmail {
		return []string{strings.ToLower(s.folder)}
	}

	return gmailLabels(msg.Items[gmailLabelsItem])
}

func imapFlags(flags []string) []string {
	mapped := []string{}
	for _, f := range flags {
		switch f {
		case imap.SeenFlag:
			mapped = append(mapped, FlagRead)
		case imap.FlaggedFlag:
			mapped = append(mapped, FlagFlagged)
		case imap.AnsweredFlag:
			mapped = append(mapped, FlagReplied)
		case imap.DraftFlag:
			mapped = append(mapped, FlagDraft)
		case imap.DeletedFlag:
			mapped = append(mapped, FlagDeleted)
		}
	}
	return mapped
}

// gmailLabels normalizes the raw X-GM-LABELS response item. System labels
// arrive as "\\Inbox", user labels as plain strings.
func gmailLabels(item interface{}) []string {
	raw, ok := item.([]interface{})
	if !ok {
		return []string{}
	}

	labels := []string{}
	for _, l := range raw {
		label := strings.Trim(fmt.Sprintf("%v", l), `"`)
		if trimmed := strings.TrimPrefix(label, `\`); trimmed != label {
			label = strings.ToLower(trimmed)
		}
		if len(label) == 0 {
			continue
		}
		labels = append(labels, label)
	}
	return labels
}
