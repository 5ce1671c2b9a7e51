// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/backend.go -package=mocks . Index,ContentWriter,CursorStore,CredentialProvider

// Index is the dedup oracle plus index writer of the local backend.
type Index interface {
	// Seen answers whether a fingerprint has already been indexed.
	Seen(fingerprint string) (bool, error)

	// Add commits one message to the searchable index.
	Add(m *IndexedMessage) error
}

// ContentWriter durably appends raw message bytes and returns where they went.
type ContentWriter interface {
	Append(raw []byte) (Location, error)
}

// CursorStore persists how far a given source identity has scanned. A missing
// record is not an error, it means start from the beginning.
type CursorStore interface {
	Load(identity string) (*Cursor, error)
	Save(identity string, cursor *Cursor) error
}

// CredentialProvider supplies account secrets on demand so terminal prompting
// can be stubbed in tests.
type CredentialProvider interface {
	Password(prompt string) (string, error)
}
