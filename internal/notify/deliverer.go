package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pagedigest/internal/models"
	"github.com/wolfeidau/pagedigest/internal/packer"
	"github.com/wolfeidau/pagedigest/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// Route binds a channel to its renderer and transport.
type Route struct {
	Renderer  packer.Renderer
	Transport Transport
}

// Report summarises one delivery. Failures are counted, never returned.
type Report struct {
	Channel   Channel
	Attempted int
	Sent      int
	Failed    int
	// Skipped is set when the channel has no configured transport.
	Skipped bool
	PostIDs []string
}

// Deliverer renders and delivers digests per channel. Delivery failures are
// logged and swallowed.
type Deliverer struct {
	routes  map[Channel]Route
	limiter *rate.Limiter
}

// DelivererOption configures a Deliverer.
type DelivererOption func(*Deliverer)

// WithRoute sets the renderer and transport of ch. A nil Renderer keeps the
// channel's default.
func WithRoute(ch Channel, route Route) DelivererOption {
	return func(d *Deliverer) {
		if route.Renderer == nil {
			route.Renderer = d.routes[ch].Renderer
		}
		d.routes[ch] = route
	}
}

// WithRateLimit paces consecutive posts, e.g. the parts of an X thread.
func WithRateLimit(perSecond float64, burst int) DelivererOption {
	return func(d *Deliverer) {
		if perSecond <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewDeliverer creates a Deliverer. Without options both channels render with
// their default packer and have no transport.
func NewDeliverer(opts ...DelivererOption) *Deliverer {
	d := &Deliverer{
		routes: map[Channel]Route{
			Discord: {Renderer: packer.LongForm{}},
			X:       {Renderer: packer.LengthConstrained{}},
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Render formats records for ch.
func (d *Deliverer) Render(ch Channel, records []models.PageRecord) ([]packer.Message, error) {
	route, ok := d.routes[ch]
	if !ok || route.Renderer == nil {
		return nil, fmt.Errorf("%w: got %q", ErrUnknownChannel, ch)
	}
	return route.Renderer.Render(records), nil
}

// Deliver posts messages to ch in order, threading each post under the
// previous one when the channel returns post ids. Delivery stops at the first
// failed post; the remainder are counted as failed.
func (d *Deliverer) Deliver(ctx context.Context, ch Channel, messages []packer.Message) Report {
	report := Report{Channel: ch, Attempted: len(messages)}
	attrs := metric.WithAttributes(attribute.String("channel", ch.String()))
	metrics := telemetry.GetMetrics()

	route, ok := d.routes[ch]
	if !ok || route.Transport == nil || !route.Transport.Configured() {
		for _, msg := range messages {
			log.Info().Str("channel", ch.String()).Str("text", msg.Text).Msg("Channel not configured, skipping actual send")
		}
		report.Skipped = true
		return report
	}

	replyTo := ""
	for i, msg := range messages {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Error().Err(err).Str("channel", ch.String()).Msg("Delivery cancelled")
			report.Failed = len(messages) - i
			break
		}

		id, err := route.Transport.Post(ctx, msg.Text, replyTo)
		if err != nil {
			log.Error().Err(err).
				Str("channel", ch.String()).
				Int("part", i+1).
				Int("parts", len(messages)).
				Msg("Failed to deliver message")
			report.Failed = len(messages) - i
			break
		}

		log.Info().
			Str("channel", ch.String()).
			Str("post_id", id).
			Int("part", i+1).
			Int("parts", len(messages)).
			Msg("Message delivered")

		report.Sent++
		if id != "" {
			report.PostIDs = append(report.PostIDs, id)
			replyTo = id
		}
	}

	metrics.DeliveriesSentTotal.Add(ctx, int64(report.Sent), attrs)
	if report.Failed > 0 {
		metrics.DeliveriesFailedTotal.Add(ctx, int64(report.Failed), attrs)
	}

	return report
}
