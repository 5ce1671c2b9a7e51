// SPDX-License-Identifier: GPL-3.0-or-later
package remote

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjolsen/mail-ingest/domain"
	"github.com/kjolsen/mail-ingest/log"

	"github.com/sirupsen/logrus"
)

const SubmitTimeout = 20 * time.Second

// Client submits messages to a remote indexing service instead of writing to
// local storage. One POST per message; the service does its own dedup and
// reports whether the message was new or already seen.
type Client struct {
	client   *http.Client
	endpoint string

	l *logrus.Logger
}

func NewClient(host string, port int) *Client {
	return &Client{
		client: &http.Client{
			Timeout: SubmitTimeout,
		},
		endpoint: fmt.Sprintf("http://%s:%d/message.json", host, port),
		l:        log.Logger(log.LOG_REMOTE),
	}
}

type submitResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
	Error    string `json:"error"`
}

// Deliver posts one raw message with its state flags and labels. A rejected
// submission counts as bad; transport failures are run-level errors because
// the service itself is unreachable.
func (c *Client) Deliver(m *domain.MessageUnit) (domain.Outcome, error) {
	state, err := json.Marshal(nonNil(m.Flags))
	if err != nil {
		return domain.OutcomeBad, fmt.Errorf("could not encode state: %w", err)
	}
	labels, err := json.Marshal(nonNil(m.Labels))
	if err != nil {
		return domain.OutcomeBad, fmt.Errorf("could not encode labels: %w", err)
	}

	form := url.Values{}
	form.Set("message", string(m.Raw))
	form.Set("state", string(state))
	form.Set("labels", string(labels))

	resp, err := c.client.Post(c.endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.OutcomeBad, fmt.Errorf("could not submit message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.OutcomeBad, fmt.Errorf("unexpected status %d from indexing service, expected 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OutcomeBad, fmt.Errorf("could not read submit response: %w", err)
	}

	submitResponse := &submitResponse{}
	err = json.Unmarshal(body, submitResponse)
	if err != nil {
		return domain.OutcomeBad, fmt.Errorf("could not deserialize submit response: %w", err)
	}

	if submitResponse.Response != "ok" {
		c.l.WithFields(logrus.Fields{"message": m.Description, "error": submitResponse.Error}).Warn("Submission rejected")
		return domain.OutcomeBad, nil
	}

	if submitResponse.Status == "seen" {
		return domain.OutcomeSeen, nil
	}

	return domain.OutcomeIndexed, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
