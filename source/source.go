// SPDX-License-Identifier: GPL-3.0-or-later

// Package source implements the pull contract over the five supported mail
// origins: a single raw message, an mbox file, maildir trees, an IMAP account
// and a Gmail account. The ingestion loop only ever sees domain.Source.
package source

// State flag names shared by the adapters that know message state.
const (
	FlagRead    = "read"
	FlagFlagged = "flagged"
	FlagReplied = "replied"
	FlagDraft   = "draft"
	FlagDeleted = "deleted"
)
