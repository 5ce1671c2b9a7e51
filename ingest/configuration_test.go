// SPDX-License-Identifier: GPL-3.0-or-later
package ingest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNumMessages(t *testing.T) {
	tests := []struct {
		name          string
		input         int
		expected      *configuration
		expectedError error
	}{
		{"ok", 500, &configuration{NumMessages: 500}, nil},
		{"zero", 0, &configuration{}, nil},
		{"negative", -1, nil, fmt.Errorf("NumMessages cannot be negative")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &configuration{}
			err := NumMessages(tc.input)(cfg)
			if tc.expected != nil {
				assert.Equal(t, tc.expected, cfg)
				assert.Nil(t, err)
			} else {
				assert.Equal(t, tc.expectedError, err)
			}
		})
	}
}

func TestSkipMessages(t *testing.T) {
	tests := []struct {
		name          string
		input         int
		expected      *configuration
		expectedError error
	}{
		{"ok", 10, &configuration{NumSkip: 10}, nil},
		{"negative", -3, nil, fmt.Errorf("SkipMessages cannot be negative")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &configuration{}
			err := SkipMessages(tc.input)(cfg)
			if tc.expected != nil {
				assert.Equal(t, tc.expected, cfg)
				assert.Nil(t, err)
			} else {
				assert.Equal(t, tc.expectedError, err)
			}
		})
	}
}

func TestVerbose(t *testing.T) {
	cfg := &configuration{}
	err := Verbose()(cfg)

	assert.Equal(t, cfg, &configuration{Verbose: true})
	assert.Nil(t, err)
}

func TestReportInterval(t *testing.T) {
	tests := []struct {
		name          string
		input         time.Duration
		expected      *configuration
		expectedError error
	}{
		{"ok", 10 * time.Second, &configuration{ReportInterval: 10 * time.Second}, nil},
		{"zero", 0, nil, fmt.Errorf("ReportInterval must be positive")},
		{"negative", -time.Second, nil, fmt.Errorf("ReportInterval must be positive")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &configuration{}
			err := ReportInterval(tc.input)(cfg)
			if tc.expected != nil {
				assert.Equal(t, tc.expected, cfg)
				assert.Nil(t, err)
			} else {
				assert.Equal(t, tc.expectedError, err)
			}
		})
	}
}

func TestBadMessageFile(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expected      *configuration
		expectedError error
	}{
		{"ok", "/tmp/rejected", &configuration{BadMessageFile: "/tmp/rejected"}, nil},
		{"lenvalidation", "", nil, fmt.Errorf("BadMessageFile cannot be empty")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &configuration{}
			err := BadMessageFile(tc.input)(cfg)
			if tc.expected != nil {
				assert.Equal(t, tc.expected, cfg)
				assert.Nil(t, err)
			} else {
				assert.Equal(t, tc.expectedError, err)
			}
		})
	}
}

func TestDefaultConfiguration(t *testing.T) {
	cfg := defaultConfiguration()

	assert.Equal(t, 5*time.Second, cfg.ReportInterval)
	assert.NotEmpty(t, cfg.BadMessageFile)
	assert.Equal(t, 0, cfg.NumMessages)
	assert.False(t, cfg.Verbose)
}
