// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"os"

	"github.com/kjolsen/mail-ingest/config"
	"github.com/kjolsen/mail-ingest/creds"
	"github.com/kjolsen/mail-ingest/domain"
	"github.com/kjolsen/mail-ingest/ingest"
	"github.com/kjolsen/mail-ingest/log"
	"github.com/kjolsen/mail-ingest/remote"
	"github.com/kjolsen/mail-ingest/source"
	"github.com/kjolsen/mail-ingest/state"
	"github.com/kjolsen/mail-ingest/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mail-ingest",
		Short: "Stream mail from stdin, mbox, maildir, IMAP or Gmail into a mail index",
		Run: func(cmd *cobra.Command, args []string) {
			run(cmd)
		},
	}
	config.RegisterFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) {
	log.InitLogging("info")
	logger := log.Logger(log.LOG_MAIN)

	conf, err := config.ReadConfig(cmd)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}

	stateDir := conf.StateDir
	if stateDir == "" {
		stateDir, err = state.DefaultDir()
		if err != nil {
			logger.WithField("error", err).Fatal("Could not determine state directory")
		}
	}
	cursors, err := state.NewFileStore(stateDir)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not open state directory")
	}

	var passwords domain.CredentialProvider
	if conf.Password != "" {
		passwords = creds.NewStatic(conf.Password)
	} else {
		passwords = creds.NewTerminal()
	}

	var src domain.Source
	switch {
	case conf.Mbox != "":
		logger.WithField("mbox", conf.Mbox).Info("Ingesting from mbox file")
		src = source.NewMbox(conf.Mbox)
	case len(conf.Maildirs) > 0:
		logger.WithField("maildirs", conf.Maildirs).Info("Ingesting from maildirs")
		src = source.NewMaildir(conf.Maildirs)
	case conf.ImapHost != "":
		logger.WithFields(logrus.Fields{"host": conf.ImapHost, "user": conf.ImapUser, "folder": conf.ImapFolder}).Info("Ingesting from imap server")
		src = source.NewImap(conf.ImapHost, conf.ImapUser, conf.ImapFolder, passwords, cursors)
	case conf.GmailUser != "":
		logger.WithField("user", conf.GmailUser).Info("Ingesting from gmail account")
		src = source.NewGmail(conf.GmailUser, passwords, cursors)
	default:
		logger.Info("Ingesting a single message from stdin")
		src = source.NewSingle(os.Stdin, "stdin")
	}

	var deliverer domain.Deliverer
	if conf.StoreDir != "" {
		s, err := store.Open(conf.StoreDir)
		if err != nil {
			logger.WithField("error", err).Fatal("Could not open mail store")
		}
		defer s.Close()
		deliverer = ingest.NewLocalDelivery(s, s)
	} else {
		deliverer = remote.NewClient(conf.RemoteHost, conf.RemotePort)
	}

	configs := []ingest.ConfigFunc{}
	if conf.NumMessages > 0 {
		configs = append(configs, ingest.NumMessages(conf.NumMessages))
	}
	if conf.NumSkip > 0 {
		configs = append(configs, ingest.SkipMessages(conf.NumSkip))
	}
	if conf.Verbose {
		configs = append(configs, ingest.Verbose())
	}

	ingester, err := ingest.NewIngester(src, deliverer, configs...)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not start ingester")
	}

	_, err = ingester.Run()
	if err != nil {
		logger.WithField("error", err).Fatal("Ingestion failed")
	}
}
