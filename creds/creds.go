// SPDX-License-Identifier: GPL-3.0-or-later

// Package creds supplies account passwords to sources that authenticate.
package creds

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Terminal prompts for a password on the controlling terminal with echo
// turned off.
type Terminal struct{}

func NewTerminal() *Terminal {
	return &Terminal{}
}

func (t *Terminal) Password(prompt string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("could not read password: %w", err)
	}

	return string(b), nil
}

// Static serves a password known up front, typically from a config file.
type Static struct {
	password string
}

func NewStatic(password string) *Static {
	return &Static{password: password}
}

func (s *Static) Password(_ string) (string, error) {
	return s.password, nil
}
