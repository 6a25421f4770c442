package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DiscordTransport posts messages to a Discord incoming webhook.
type DiscordTransport struct {
	webhookURL string
	opts       transportOptions
}

var _ Transport = (*DiscordTransport)(nil)

// NewDiscordTransport creates a transport for webhookURL. An empty URL yields
// an unconfigured transport.
func NewDiscordTransport(webhookURL string, opts ...TransportOption) *DiscordTransport {
	return &DiscordTransport{
		webhookURL: webhookURL,
		opts:       newTransportOptions(opts),
	}
}

func (d *DiscordTransport) Configured() bool {
	return d.webhookURL != ""
}

// Post sends text as the webhook message content. Discord webhooks have no
// reply threading, so replyTo is ignored and no id is returned.
func (d *DiscordTransport) Post(ctx context.Context, text, replyTo string) (string, error) {
	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode discord payload: %w", err)
	}

	_, err = do(ctx, d.opts.client, d.opts.retry, Discord, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to post to discord: %w", err)
	}

	return "", nil
}
