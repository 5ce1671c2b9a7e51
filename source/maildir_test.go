// SPDX-License-Identifier: GPL-3.0-or-later
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kjolsen/mail-ingest/domain"

	"github.com/stretchr/testify/assert"
)

func writeTestMaildir(t *testing.T, name string, curMessages map[string]string) string {
	root := filepath.Join(t.TempDir(), name)
	for _, sub := range []string{"cur", "new", "tmp"} {
		assert.NoError(t, os.MkdirAll(filepath.Join(root, sub), 0o755))
	}
	for filename, content := range curMessages {
		assert.NoError(t, os.WriteFile(filepath.Join(root, "cur", filename), []byte(content), 0o644))
	}
	return root
}

func TestMaildirScan(t *testing.T) {
	dir := writeTestMaildir(t, "INBOX", map[string]string{
		"1000000001.m1.host:2,S":  "Subject: first\n\nbody one\n",
		"1000000002.m2.host:2,FS": "Subject: second\n\nbody two\n",
		"1000000003.m3.host:2,":   "Subject: third\n\nbody three\n",
	})

	s := NewMaildir([]string{dir})
	assert.NoError(t, s.Load())
	defer s.Finish()

	assert.True(t, s.ProvidesLabels())

	units := []*domain.MessageUnit{}
	for !s.Done() {
		m, err := s.Next()
		assert.NoError(t, err)
		units = append(units, m)
	}

	assert.Len(t, units, 3)
	assert.Contains(t, string(units[0].Raw), "Subject: first")
	assert.Equal(t, []string{"inbox"}, units[0].Labels)
	assert.Equal(t, []string{FlagRead}, units[0].Flags)
	assert.ElementsMatch(t, []string{FlagRead, FlagFlagged}, units[1].Flags)
	assert.Empty(t, units[2].Flags)

	_, err := s.Next()
	assert.ErrorIs(t, err, domain.ErrSourceExhausted)
}

func TestMaildirMultipleRoots(t *testing.T) {
	inbox := writeTestMaildir(t, "INBOX", map[string]string{
		"1000000001.a.host:2,": "Subject: in inbox\n\nx\n",
	})
	archive := writeTestMaildir(t, "Archive", map[string]string{
		"1000000002.b.host:2,": "Subject: in archive\n\ny\n",
	})

	s := NewMaildir([]string{inbox, archive})
	assert.NoError(t, s.Load())
	defer s.Finish()

	labels := []string{}
	for !s.Done() {
		m, err := s.Next()
		assert.NoError(t, err)
		labels = append(labels, m.Labels...)
	}

	assert.Equal(t, []string{"inbox", "archive"}, labels)
}

func TestMaildirPicksUpNewMessages(t *testing.T) {
	dir := writeTestMaildir(t, "INBOX", map[string]string{})
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "new", "1000000004.n1.host"), []byte("Subject: fresh\n\nz\n"), 0o644))

	s := NewMaildir([]string{dir})
	assert.NoError(t, s.Load())
	defer s.Finish()

	m, err := s.Next()
	assert.NoError(t, err)
	assert.Contains(t, string(m.Raw), "Subject: fresh")
	assert.True(t, s.Done())
}

func TestMaildirSkip(t *testing.T) {
	messages := map[string]string{}
	for i := 1; i <= 5; i++ {
		messages[fmt.Sprintf("100000000%d.m%d.host:2,", i, i)] = fmt.Sprintf("Subject: msg%d\n\nbody\n", i)
	}
	dir := writeTestMaildir(t, "INBOX", messages)

	s := NewMaildir([]string{dir})
	assert.NoError(t, s.Load())
	defer s.Finish()

	assert.NoError(t, s.Skip(3))

	m, err := s.Next()
	assert.NoError(t, err)
	assert.Contains(t, string(m.Raw), "Subject: msg4")

	assert.NoError(t, s.Skip(10))
	assert.True(t, s.Done())
}

func TestMaildirMissingDir(t *testing.T) {
	s := NewMaildir([]string{filepath.Join(t.TempDir(), "nope")})

	err := s.Load()
	unavailable := &domain.SourceUnavailableError{}
	assert.ErrorAs(t, err, &unavailable)
}
