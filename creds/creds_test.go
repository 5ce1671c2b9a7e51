// SPDX-License-Identifier: GPL-3.0-or-later
package creds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic(t *testing.T) {
	provider := NewStatic("hunter2")

	password, err := provider.Password("IMAP password")
	assert.NoError(t, err)
	assert.Equal(t, "hunter2", password)

	password, err = provider.Password("some other prompt")
	assert.NoError(t, err)
	assert.Equal(t, "hunter2", password)
}
