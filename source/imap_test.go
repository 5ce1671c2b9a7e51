// SPDX-License-Identifier: GPL-3.0-or-later
package source

import (
	"testing"

	"github.com/kjolsen/mail-ingest/domain"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCursorStore struct {
	cursor *domain.Cursor
	saved  *domain.Cursor
}

func (f *fakeCursorStore) Load(identity string) (*domain.Cursor, error) {
	return f.cursor, nil
}

func (f *fakeCursorStore) Save(identity string, cursor *domain.Cursor) error {
	f.saved = cursor
	return nil
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name     string
		source   *ImapSource
		expected string
	}{
		{"imap", NewImap("mail.example.com", "alice", "", nil, nil), "imap:mail.example.com:993:alice"},
		{"imapwithport", NewImap("mail.example.com:143", "alice", "", nil, nil), "imap:mail.example.com:143:alice"},
		{"gmail", NewGmail("alice@gmail.com", nil, nil), "gmail:alice@gmail.com"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.source.Identity())
		})
	}
}

func TestImapDefaults(t *testing.T) {
	s := NewImap("mail.example.com", "alice", "", nil, nil)
	assert.Equal(t, "mail.example.com:993", s.host)
	assert.Equal(t, "INBOX", s.folder)
	assert.True(t, s.ProvidesLabels())

	g := NewGmail("alice@gmail.com", nil, nil)
	assert.Equal(t, "imap.gmail.com:993", g.host)
	assert.Equal(t, "[Gmail]/All Mail", g.folder)
}

func TestImapFlags(t *testing.T) {
	tests := []struct {
		name     string
		flags    []string
		expected []string
	}{
		{"empty", []string{}, []string{}},
		{"read", []string{imap.SeenFlag}, []string{FlagRead}},
		{"all", []string{imap.SeenFlag, imap.FlaggedFlag, imap.AnsweredFlag, imap.DraftFlag, imap.DeletedFlag}, []string{FlagRead, FlagFlagged, FlagReplied, FlagDraft, FlagDeleted}},
		{"unknown", []string{"\\Recent"}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, imapFlags(tc.flags))
		})
	}
}

func TestGmailLabels(t *testing.T) {
	tests := []struct {
		name     string
		item     interface{}
		expected []string
	}{
		{"nil", nil, []string{}},
		{"user", []interface{}{"work", "receipts"}, []string{"work", "receipts"}},
		{"system", []interface{}{`\Inbox`, `\Sent`}, []string{"inbox", "sent"}},
		{"mixed", []interface{}{`\Inbox`, "work"}, []string{"inbox", "work"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, gmailLabels(tc.item))
		})
	}
}

func TestImapResume(t *testing.T) {
	tests := []struct {
		name            string
		cursor          *domain.Cursor
		expectedPos     int
		expectedLastUid uint32
	}{
		{"nocursor", nil, 0, 0},
		{"fastforward", &domain.Cursor{UidValidity: 7, LastUid: 20}, 2, 20},
		{"pastend", &domain.Cursor{UidValidity: 7, LastUid: 40}, 4, 40},
		{"uidvaliditychanged", &domain.Cursor{UidValidity: 6, LastUid: 20}, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewImap("mail.example.com", "alice", "", nil, &fakeCursorStore{cursor: tc.cursor})
			s.uidValidity = 7
			s.uids = []uint32{10, 20, 30, 40}

			require.NoError(t, s.resume())
			assert.Equal(t, tc.expectedPos, s.pos)
			assert.Equal(t, tc.expectedLastUid, s.lastUid)
			assert.Equal(t, tc.expectedLastUid, s.flushedUid)
		})
	}
}

func TestImapCursorCoversOnlyProcessedMessages(t *testing.T) {
	cursors := &fakeCursorStore{}
	s := NewImap("mail.example.com", "alice", "", nil, cursors)
	s.uidValidity = 7
	s.buffer = []fetched{
		{uid: 41, unit: &domain.MessageUnit{Description: "41"}},
		{uid: 42, unit: &domain.MessageUnit{Description: "42"}},
	}

	// 42 is pulled but the run ends before it is delivered; the cursor must
	// stop at 41 so the next run picks 42 up again.
	_, err := s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	require.NoError(t, err)

	require.NoError(t, s.Finish())

	require.NotNil(t, cursors.saved)
	assert.Equal(t, uint32(41), cursors.saved.LastUid)
	assert.Equal(t, uint32(7), cursors.saved.UidValidity)
}

func TestImapSkipCountsAsCovered(t *testing.T) {
	cursors := &fakeCursorStore{}
	s := NewImap("mail.example.com", "alice", "", nil, cursors)
	s.uidValidity = 7
	s.uids = []uint32{10, 20, 30}

	require.NoError(t, s.Skip(2))

	require.NotNil(t, cursors.saved)
	assert.Equal(t, uint32(20), cursors.saved.LastUid)
	assert.Equal(t, 2, s.pos)
}

func TestImapDoneBeforeLoad(t *testing.T) {
	s := NewImap("mail.example.com", "alice", "", nil, nil)
	assert.True(t, s.Done())
}

func TestImapFinishWithoutLoad(t *testing.T) {
	s := NewImap("mail.example.com", "alice", "", nil, nil)
	assert.NoError(t, s.Finish())
	assert.NoError(t, s.Finish())
}
