package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pagedigest/internal/telemetry"
)

const maxResponseBody = 1 << 20

// Transport publishes one message to a channel.
type Transport interface {
	// Post publishes text and returns the id of the created post, if the
	// channel reports one. A non-empty replyTo threads the post under an
	// earlier one on channels that support it.
	Post(ctx context.Context, text, replyTo string) (id string, err error)

	// Configured reports whether credentials are present. Unconfigured
	// transports are skipped and the message is only logged.
	Configured() bool
}

// StatusError is a non-2xx response from a channel endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// RetryConfig bounds retries of transient failures: network errors, 429 and 5xx.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are given.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

type transportOptions struct {
	client *http.Client
	retry  RetryConfig
}

// TransportOption configures a Transport.
type TransportOption func(*transportOptions)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(o *transportOptions) {
		o.client = client
	}
}

// WithRetry replaces the retry settings.
func WithRetry(cfg RetryConfig) TransportOption {
	return func(o *transportOptions) {
		o.retry = cfg
	}
}

func newTransportOptions(opts []TransportOption) transportOptions {
	o := transportOptions{
		client: &http.Client{Timeout: 30 * time.Second},
		retry:  DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// do sends the request built by newReq, retrying transient failures with
// exponential backoff, and returns the response body of the first 2xx.
func do(ctx context.Context, client *http.Client, cfg RetryConfig, channel Channel, newReq func(context.Context) (*http.Request, error)) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}

	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = 1
	}

	operation := func() ([]byte, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			if secs := retryAfterSeconds(resp.Header.Get("Retry-After")); secs > 0 {
				log.Warn().Int("retry_after", secs).Str("channel", channel.String()).Msg("Rate limited by channel")
				return nil, backoff.RetryAfter(secs)
			}
			return nil, statusErr
		case resp.StatusCode >= 500:
			return nil, statusErr
		default:
			return nil, backoff.Permanent(statusErr)
		}
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			telemetry.GetMetrics().DeliveryRetriesTotal.Add(ctx, 1)
			log.Warn().Err(err).Dur("next", next).Str("channel", channel.String()).Msg("Delivery attempt failed, retrying")
		}),
	)
}

func retryAfterSeconds(value string) int {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}
