// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"os"
	"path"
	"testing"

	"github.com/kjolsen/mail-ingest/domain"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		subject     string
		messageId   string
		fingerprint string
	}{
		{"plain.msg", "Hello world", "1234@example.com", "cc065d816e1eb03ff397cb46d01b972223032f2f41f1bc8650bc62497cbe45ab"},
		{"nonascii.msg", "Café", "5678@example.com", "273e004d8781e7304c6fbc7f88410840f36ac1f9f83bf7963e5bead35e388e94"},
		{"noidheaders.msg", "No trace headers", "", "f6de0b37a225721ff1b2ba9b0dd44fde2b8c04fd7bca006f5a3a4eede12fe8a6"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rawMail, err := os.ReadFile(path.Join("testdata", tc.name))
			assert.NoError(t, err)

			parsed, err := Parse(rawMail)
			assert.NoError(t, err)
			assert.Equal(t, tc.subject, parsed.Subject)
			assert.Equal(t, tc.messageId, parsed.MessageId)
			assert.Equal(t, tc.fingerprint, parsed.Fingerprint)
		})
	}
}

func TestParseBroken(t *testing.T) {
	rawMail, err := os.ReadFile(path.Join("testdata", "broken.msg"))
	assert.NoError(t, err)

	parsed, err := Parse(rawMail)
	assert.Nil(t, parsed)

	invalid := &domain.InvalidMessageError{}
	assert.ErrorAs(t, err, &invalid)
}

func TestFingerprintStable(t *testing.T) {
	rawMail, err := os.ReadFile(path.Join("testdata", "plain.msg"))
	assert.NoError(t, err)

	first, err := Fingerprint(rawMail)
	assert.NoError(t, err)
	second, err := Fingerprint(rawMail)
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	parsed, err := Parse(rawMail)
	assert.NoError(t, err)
	assert.Equal(t, first, parsed.Fingerprint)
}

func TestShortSubject(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{"short", "hello", "hello"},
		{"long", "0123456789012345678901234567890123456789", "012345678901234567890123456789..."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ShortSubject(tc.subject))
		})
	}
}
