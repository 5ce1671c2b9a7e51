// SPDX-License-Identifier: GPL-3.0-or-later
package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjolsen/mail-ingest/domain"

	"github.com/stretchr/testify/assert"
)

const testMbox = `From alice@example.com Mon Jan  2 15:04:05 2006
From: alice@example.com
Subject: one

body one

From bob@example.com Mon Jan  2 15:05:05 2006
From: bob@example.com
Subject: two

body two

From carol@example.com Mon Jan  2 15:06:05 2006
From: carol@example.com
Subject: three

body three
`

func writeTestMbox(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "test.mbox")
	assert.NoError(t, os.WriteFile(path, []byte(testMbox), 0o644))
	return path
}

func TestMboxIteratesInFileOrder(t *testing.T) {
	s := NewMbox(writeTestMbox(t))
	assert.NoError(t, s.Load())
	defer s.Finish()

	assert.False(t, s.ProvidesLabels())

	subjects := []string{}
	for !s.Done() {
		m, err := s.Next()
		assert.NoError(t, err)
		for _, line := range strings.Split(string(m.Raw), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.HasPrefix(line, "Subject: ") {
				subjects = append(subjects, strings.TrimPrefix(line, "Subject: "))
			}
		}
	}

	assert.Equal(t, []string{"one", "two", "three"}, subjects)

	_, err := s.Next()
	assert.ErrorIs(t, err, domain.ErrSourceExhausted)
}

func TestMboxSkip(t *testing.T) {
	s := NewMbox(writeTestMbox(t))
	assert.NoError(t, s.Load())
	defer s.Finish()

	assert.NoError(t, s.Skip(2))
	assert.False(t, s.Done())

	m, err := s.Next()
	assert.NoError(t, err)
	assert.Contains(t, string(m.Raw), "Subject: three")
	assert.True(t, s.Done())
}

func TestMboxSkipPastEnd(t *testing.T) {
	s := NewMbox(writeTestMbox(t))
	assert.NoError(t, s.Load())
	defer s.Finish()

	assert.NoError(t, s.Skip(10))
	assert.True(t, s.Done())
}

func TestMboxMissingFile(t *testing.T) {
	s := NewMbox(filepath.Join(t.TempDir(), "does-not-exist.mbox"))

	err := s.Load()
	unavailable := &domain.SourceUnavailableError{}
	assert.ErrorAs(t, err, &unavailable)
}

func TestMboxFinishTwice(t *testing.T) {
	s := NewMbox(writeTestMbox(t))
	assert.NoError(t, s.Load())
	assert.NoError(t, s.Finish())
	assert.NoError(t, s.Finish())
}
