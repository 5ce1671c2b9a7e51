// SPDX-License-Identifier: GPL-3.0-or-later

// Package ingest drives one source through the indexing backend: pull one
// message at a time, apply skip and cap policy, deliver, classify the
// outcome and keep running statistics. Messages are processed strictly in
// source order because the backend reconstructs threads in submission order.
package ingest

import (
	"fmt"
	"os"
	"time"

	"github.com/kjolsen/mail-ingest/domain"
	"github.com/kjolsen/mail-ingest/log"

	"github.com/sirupsen/logrus"
)

// RunStats counts what happened to every scanned message. Only the single
// control loop mutates it.
type RunStats struct {
	Scanned int
	Indexed int
	Seen    int
	Bad     int

	Started    time.Time
	lastReport time.Time
}

type Ingester struct {
	source    domain.Source
	deliverer domain.Deliverer

	configuration *configuration

	l *logrus.Logger
}

func NewIngester(source domain.Source, deliverer domain.Deliverer, configFunc ...ConfigFunc) (*Ingester, error) {
	config := defaultConfiguration()
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	return &Ingester{
		source:        source,
		deliverer:     deliverer,
		configuration: config,
		l:             log.Logger(log.LOG_INGEST),
	}, nil
}

// Run executes one ingestion pass. Whatever happens, the source is finished
// and a final statistics line is emitted, so an operator always knows how far
// an interrupted run got.
func (in *Ingester) Run() (stats *RunStats, err error) {
	now := time.Now()
	stats = &RunStats{Started: now, lastReport: now}

	// The finish guarantee covers every exit path, a failed load included.
	defer func() {
		finishErr := in.source.Finish()
		if finishErr != nil && err == nil {
			err = fmt.Errorf("could not finish source: %w", finishErr)
		}
		in.report(stats, true)
	}()

	err = in.source.Load()
	if err != nil {
		return stats, fmt.Errorf("could not load source: %w", err)
	}

	if in.configuration.NumSkip > 0 {
		err = in.source.Skip(in.configuration.NumSkip)
		if err != nil {
			return stats, fmt.Errorf("could not skip %d messages: %w", in.configuration.NumSkip, err)
		}
	}

	for !in.source.Done() {
		m, nextErr := in.source.Next()
		if nextErr != nil {
			return stats, fmt.Errorf("could not pull next message: %w", nextErr)
		}

		if !in.source.ProvidesLabels() {
			m.Labels = withDefaultLabel(m.Labels)
		}

		// The cap is exact: a message pulled beyond it is neither processed
		// nor counted as scanned.
		if in.configuration.NumMessages > 0 && stats.Scanned >= in.configuration.NumMessages {
			break
		}
		stats.Scanned++

		outcome, deliverErr := in.deliverer.Deliver(m)
		if deliverErr != nil {
			in.preserveBadMessage(m)
			return stats, fmt.Errorf("could not deliver %s: %w", m.Description, deliverErr)
		}

		switch outcome {
		case domain.OutcomeIndexed:
			stats.Indexed++
		case domain.OutcomeSeen:
			stats.Seen++
		case domain.OutcomeBad:
			stats.Bad++
		}

		if in.configuration.Verbose {
			in.l.WithFields(logrus.Fields{"message": m.Description, "outcome": outcome.String()}).Info("Processed message")
		}

		if time.Since(stats.lastReport) > in.configuration.ReportInterval && !in.source.Done() {
			in.report(stats, false)
		}
	}

	return stats, nil
}

func (in *Ingester) report(stats *RunStats, final bool) {
	elapsed := time.Since(stats.Started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(stats.Scanned) / elapsed
	}

	entry := in.l.WithFields(logrus.Fields{
		"scanned": stats.Scanned,
		"indexed": stats.Indexed,
		"bad":     stats.Bad,
		"seen":    stats.Seen,
		"elapsed": fmt.Sprintf("%.1fs", elapsed),
		"rate":    fmt.Sprintf("%.1f/s", rate),
	})

	if final {
		entry.Info("Run complete")
	} else {
		entry.Info("Scanning")
	}

	stats.lastReport = time.Now()
}

// preserveBadMessage dumps the raw bytes of the message that broke the
// pipeline so it can be inspected and replayed offline.
func (in *Ingester) preserveBadMessage(m *domain.MessageUnit) {
	err := os.WriteFile(in.configuration.BadMessageFile, m.Raw, 0o600)
	if err != nil {
		in.l.WithFields(logrus.Fields{"file": in.configuration.BadMessageFile, "error": err}).Warn("Could not preserve bad message")
		return
	}

	in.l.WithFields(logrus.Fields{"message": m.Description, "file": in.configuration.BadMessageFile}).Error("Preserved failing message for inspection")
}

func withDefaultLabel(labels []string) []string {
	for _, l := range labels {
		if l == domain.DefaultLabel {
			return labels
		}
	}
	return append(labels, domain.DefaultLabel)
}
