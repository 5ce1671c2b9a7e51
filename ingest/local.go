// SPDX-License-Identifier: GPL-3.0-or-later
package ingest

import (
	"errors"
	"fmt"

	"github.com/kjolsen/mail-ingest/domain"
	"github.com/kjolsen/mail-ingest/log"
	"github.com/kjolsen/mail-ingest/mail"

	"github.com/sirupsen/logrus"
)

// LocalDelivery writes messages straight into a local backend: parse,
// dedup-check, append content, commit the index entry. Parse failures are
// expected corpus noise and classify as bad; storage failures mean the
// pipeline is unsafe and abort the run.
type LocalDelivery struct {
	index   domain.Index
	content domain.ContentWriter

	l *logrus.Logger
}

func NewLocalDelivery(index domain.Index, content domain.ContentWriter) *LocalDelivery {
	return &LocalDelivery{
		index:   index,
		content: content,
		l:       log.Logger(log.LOG_INGEST),
	}
}

func (d *LocalDelivery) Deliver(m *domain.MessageUnit) (domain.Outcome, error) {
	parsed, err := mail.Parse(m.Raw)
	if err != nil {
		invalid := &domain.InvalidMessageError{}
		if errors.As(err, &invalid) {
			d.l.WithFields(logrus.Fields{"message": m.Description, "error": err}).Info("Skipping unparseable message")
			return domain.OutcomeBad, nil
		}
		return domain.OutcomeBad, fmt.Errorf("could not parse %s: %w", m.Description, err)
	}

	seen, err := d.index.Seen(parsed.Fingerprint)
	if err != nil {
		return domain.OutcomeBad, fmt.Errorf("could not check for duplicate: %w", err)
	}
	if seen {
		return domain.OutcomeSeen, nil
	}

	location, err := d.content.Append(m.Raw)
	if err != nil {
		return domain.OutcomeBad, fmt.Errorf("could not write message content: %w", err)
	}

	err = d.index.Add(&domain.IndexedMessage{
		Fingerprint: parsed.Fingerprint,
		MessageId:   parsed.MessageId,
		Subject:     parsed.Subject,
		From:        parsed.From,
		Date:        parsed.Date,
		Labels:      m.Labels,
		Flags:       m.Flags,
		Location:    location,
	})
	if err != nil {
		return domain.OutcomeBad, fmt.Errorf("could not index message: %w", err)
	}

	d.l.WithFields(logrus.Fields{"message": m.Description, "subject": mail.ShortSubject(parsed.Subject)}).Debug("Indexed message")
	return domain.OutcomeIndexed, nil
}
