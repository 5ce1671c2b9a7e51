// SPDX-License-Identifier: GPL-3.0-or-later
package domain

// DefaultLabel is applied by the ingester to messages from sources that
// carry no categorization of their own.
const DefaultLabel = "inbox"

// MessageUnit is one raw message as pulled from a source, together with the
// provenance the source knows about. It lives for exactly one loop iteration.
type MessageUnit struct {
	Raw         []byte
	Labels      []string
	Flags       []string
	Description string
}

// ParsedMail holds the structured fields extracted from a raw message.
type ParsedMail struct {
	// Fingerprint is the content-derived dedup key. Two messages with the
	// same fingerprint are the same logical message regardless of origin.
	Fingerprint string
	MessageId   string
	Subject     string
	From        string
	Date        string
}

// Location is the handle returned by a content writer for an appended message.
type Location struct {
	Offset int64
	Size   int64
}

// IndexedMessage is what gets committed to the searchable index.
type IndexedMessage struct {
	Fingerprint string
	MessageId   string
	Subject     string
	From        string
	Date        string
	Labels      []string
	Flags       []string
	Location    Location
}

// Cursor is the persisted scan position of a resumable source. LastUid is the
// highest UID that has been fully processed; UidValidity guards against the
// server renumbering the mailbox.
type Cursor struct {
	UidValidity uint32 `json:"uidvalidity"`
	LastUid     uint32 `json:"lastuid"`
}

type Outcome int

const (
	OutcomeIndexed = Outcome(0)
	OutcomeSeen    = Outcome(1)
	OutcomeBad     = Outcome(2)
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "indexed"
	case OutcomeSeen:
		return "seen"
	case OutcomeBad:
		return "bad"
	}
	return "unknown"
}
