// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"mime"
	stdmail "net/mail"
	"strings"

	"github.com/kjolsen/mail-ingest/domain"

	"github.com/emersion/go-message/charset"
)

// Parse extracts the structured fields the index needs from a raw message.
// Structural problems are reported as *domain.InvalidMessageError so callers
// can tell expected corpus noise from real failures.
func Parse(rawMail []byte) (*domain.ParsedMail, error) {
	msg, err := stdmail.ReadMessage(bytes.NewReader(rawMail))
	if err != nil {
		return nil, &domain.InvalidMessageError{Reason: "could not parse headers", Err: err}
	}

	subject, err := decodeSubject(msg.Header.Get("Subject"))
	if err != nil {
		return nil, &domain.InvalidMessageError{Reason: "could not decode subject", Err: err}
	}

	fingerprint, err := fingerprint(msg.Header, rawMail)
	if err != nil {
		return nil, err
	}

	return &domain.ParsedMail{
		Fingerprint: fingerprint,
		MessageId:   strings.Trim(strings.TrimSpace(msg.Header.Get("Message-Id")), "<>"),
		Subject:     subject,
		From:        msg.Header.Get("From"),
		Date:        msg.Header.Get("Date"),
	}, nil
}

// Fingerprint derives the dedup key for a message: a sha256 over the
// Message-Id and Received headers. Messages carrying neither header fall back
// to a hash over the full raw bytes so they still dedup on content.
func Fingerprint(rawMail []byte) (string, error) {
	msg, err := stdmail.ReadMessage(bytes.NewReader(rawMail))
	if err != nil {
		return "", &domain.InvalidMessageError{Reason: "could not parse headers", Err: err}
	}

	return fingerprint(msg.Header, rawMail)
}

func fingerprint(header stdmail.Header, rawMail []byte) (string, error) {
	messageIdHeader := header["Message-Id"]
	receivedHeader := header["Received"]
	if len(messageIdHeader) == 0 && len(receivedHeader) == 0 {
		return hash([][]byte{rawMail})
	}

	input := [][]byte{}
	for _, h := range messageIdHeader {
		input = append(input, []byte(h))
	}
	for _, h := range receivedHeader {
		input = append(input, []byte(h))
	}

	return hash(input)
}

func decodeSubject(subjectHeader string) (string, error) {
	dec := &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}

	subject, err := dec.DecodeHeader(subjectHeader)
	if err != nil {
		return "", fmt.Errorf("could not decode subject header: %w", err)
	}

	return subject, nil
}

func ShortSubject(subject string) string {
	if (len(subject)) > 30 {
		subject = subject[:30] + "..."
	}
	return subject
}

func hash(input [][]byte) (string, error) {
	sha := sha256.New()
	for _, i := range input {
		_, err := sha.Write(i)
		if err != nil {
			return "", fmt.Errorf("could not hash: %w", err)
		}
	}

	return fmt.Sprintf("%x", sha.Sum(nil)), nil
}
