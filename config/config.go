// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

const (
	DefaultConfigFile = "config.toml"
	DefaultRemotePort = 8042
	DefaultImapFolder = "INBOX"
)

type Config struct {
	StoreDir   string
	RemoteHost string
	RemotePort int

	Mbox       string
	Maildirs   []string
	ImapHost   string
	ImapUser   string
	ImapFolder string
	GmailUser  string

	Password string
	StateDir string

	NumMessages int
	NumSkip     int
	Verbose     bool

	Loglevel *string
}

// RegisterFlags attaches the CLI surface to the root command. Every flag
// overrides the corresponding config file value when set.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("config", DefaultConfigFile, "Path to the toml config file")
	flags.String("store", "", "Directory of the local mail store")
	flags.String("remote-host", "", "Host of a remote indexing service")
	flags.Int("remote-port", DefaultRemotePort, "Port of the remote indexing service")
	flags.String("mbox", "", "Path to an mbox file to ingest")
	flags.StringArray("maildir", nil, "Maildir to ingest, repeatable")
	flags.String("imap-host", "", "IMAP server as host or host:port")
	flags.String("imap-user", "", "Account name on the IMAP server")
	flags.String("imap-folder", DefaultImapFolder, "IMAP folder to scan")
	flags.String("gmail-user", "", "Gmail account name")
	flags.String("state-dir", "", "Directory for resume state files")
	flags.Int("num-messages", 0, "Stop after this many messages, 0 means no cap")
	flags.Int("num-skip", 0, "Skip this many messages before ingesting")
	flags.Bool("verbose", false, "Trace every message")
}

// ReadConfig loads the toml config file named by --config and applies flag
// overrides on top. A missing file is only an error when --config was given
// explicitly.
func ReadConfig(cmd *cobra.Command) (*Config, error) {
	flags := cmd.Flags()

	filename, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	config := &Config{
		RemotePort: DefaultRemotePort,
		ImapFolder: DefaultImapFolder,
	}

	_, err = toml.DecodeFile(filename, config)
	if err != nil {
		if !os.IsNotExist(err) || flags.Changed("config") {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	err = config.applyFlags(cmd)
	if err != nil {
		return nil, err
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()

	for name, target := range map[string]*string{
		"store":       &c.StoreDir,
		"remote-host": &c.RemoteHost,
		"mbox":        &c.Mbox,
		"imap-host":   &c.ImapHost,
		"imap-user":   &c.ImapUser,
		"imap-folder": &c.ImapFolder,
		"gmail-user":  &c.GmailUser,
		"state-dir":   &c.StateDir,
	} {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*target = value
	}

	for name, target := range map[string]*int{
		"remote-port":  &c.RemotePort,
		"num-messages": &c.NumMessages,
		"num-skip":     &c.NumSkip,
	} {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*target = value
	}

	if flags.Changed("maildir") {
		maildirs, err := flags.GetStringArray("maildir")
		if err != nil {
			return err
		}
		c.Maildirs = maildirs
	}

	if flags.Changed("verbose") {
		verbose, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		c.Verbose = verbose
	}

	return nil
}

func (c *Config) validate() error {
	sources := 0
	if len(strings.TrimSpace(c.Mbox)) > 0 {
		sources++
	}
	if len(c.Maildirs) > 0 {
		sources++
	}
	if len(strings.TrimSpace(c.ImapHost)) > 0 {
		sources++
	}
	if len(strings.TrimSpace(c.GmailUser)) > 0 {
		sources++
	}
	if sources > 1 {
		return fmt.Errorf("Mbox, Maildirs, ImapHost and GmailUser are mutually exclusive, set at most one source")
	}

	if len(strings.TrimSpace(c.ImapHost)) > 0 {
		if err := validateNonEmptyStringField(c.ImapUser, "ImapUser must not be empty, set to username on the imap server"); err != nil {
			return err
		}
	}

	storeSet := len(strings.TrimSpace(c.StoreDir)) > 0
	remoteSet := len(strings.TrimSpace(c.RemoteHost)) > 0
	if storeSet && remoteSet {
		return fmt.Errorf("StoreDir and RemoteHost cannot be set at the same time")
	}
	if !storeSet && !remoteSet {
		return fmt.Errorf("set either StoreDir or RemoteHost to choose an indexing backend")
	}

	if remoteSet && c.RemotePort <= 0 {
		return fmt.Errorf("RemotePort must be a positive port number")
	}

	if c.NumMessages < 0 {
		return fmt.Errorf("NumMessages cannot be negative")
	}
	if c.NumSkip < 0 {
		return fmt.Errorf("NumSkip cannot be negative")
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
