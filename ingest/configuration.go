// SPDX-License-Identifier: GPL-3.0-or-later
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type ConfigFunc func(c *configuration) error

// NumMessages stops the run after exactly n messages have been scanned.
func NumMessages(n int) ConfigFunc {
	return func(c *configuration) error {
		if n < 0 {
			return fmt.Errorf("NumMessages cannot be negative")
		}

		c.NumMessages = n
		return nil
	}
}

// SkipMessages advances past the first n messages of the source before any
// processing happens.
func SkipMessages(n int) ConfigFunc {
	return func(c *configuration) error {
		if n < 0 {
			return fmt.Errorf("SkipMessages cannot be negative")
		}

		c.NumSkip = n
		return nil
	}
}

// Verbose emits a per-message trace line.
func Verbose() ConfigFunc {
	return func(c *configuration) error {
		c.Verbose = true
		return nil
	}
}

// ReportInterval overrides how often the running throughput line is emitted.
func ReportInterval(interval time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if interval <= 0 {
			return fmt.Errorf("ReportInterval must be positive")
		}

		c.ReportInterval = interval
		return nil
	}
}

// BadMessageFile overrides where the raw bytes of a message that triggered an
// unrecoverable delivery error are preserved.
func BadMessageFile(path string) ConfigFunc {
	return func(c *configuration) error {
		if len(path) == 0 {
			return fmt.Errorf("BadMessageFile cannot be empty")
		}

		c.BadMessageFile = path
		return nil
	}
}

type configuration struct {
	NumMessages int
	NumSkip     int
	Verbose     bool

	ReportInterval time.Duration
	BadMessageFile string
}

func defaultConfiguration() *configuration {
	return &configuration{
		ReportInterval: 5 * time.Second,
		BadMessageFile: filepath.Join(os.TempDir(), "mail-ingest-bad-message"),
	}
}
