package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrDisabled is returned when no function URL is configured.
var ErrDisabled = errors.New("email sending is not configured")

// Message is one outgoing email.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender posts messages to the email-sending function. Each message is
// attempted once; failures are reported to the caller without retry.
type Sender struct {
	url    string
	key    string
	from   string
	client *http.Client
}

// NewSender creates a sender. An empty url yields a sender that always
// returns ErrDisabled.
func NewSender(url, key, from string, timeout time.Duration) *Sender {
	return &Sender{
		url:    url,
		key:    key,
		from:   from,
		client: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a function URL is configured.
func (s *Sender) Enabled() bool {
	return s.url != ""
}

// Send delivers msg. From defaults to the configured sender address.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if msg.From == "" {
		msg.From = s.from
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.key != "" {
		req.Header.Set("Authorization", "Bearer "+s.key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email function call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email function returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
