package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Delivers operator-facing notices (throttle ceiling reached, stream restarts). Failures are
// logged by the caller and never affect rule processing.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Posts notices to a Slack "incoming webhook", which must already be configured for the
// target channel.
type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) Notify(ctx context.Context, msg string) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(SlackWebhookBody{Text: "🐦 kyupikon: " + msg}); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	defer resp.Body.Close()

	// slack answers a bare "ok" on success
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(reply)) != "ok" {
		return fmt.Errorf("slack webhook: status=%d body=%q", resp.StatusCode, reply)
	}
	return nil
}
