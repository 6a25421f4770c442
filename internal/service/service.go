package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pagedigest/internal/models"
	"github.com/wolfeidau/pagedigest/internal/notify"
	"github.com/wolfeidau/pagedigest/internal/packer"
	"github.com/wolfeidau/pagedigest/internal/store"
	"github.com/wolfeidau/pagedigest/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RetentionWindow is how long a page record survives without being updated.
const RetentionWindow = 7 * 24 * time.Hour

// PageStore is the record store used by the pipelines.
type PageStore interface {
	UpsertPage(ctx context.Context, tenantID, projectName string, update models.Update) (models.PageRecord, error)
	EvictOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int, error)
	ListSince(ctx context.Context, tenantID string, since time.Time) ([]models.PageRecord, error)
}

// Notifier renders and delivers messages for a channel.
type Notifier interface {
	Render(ch notify.Channel, records []models.PageRecord) ([]packer.Message, error)
	Deliver(ctx context.Context, ch notify.Channel, messages []packer.Message) notify.Report
}

// Digest is the rendered view of a tenant's recent updates.
type Digest struct {
	TenantID string
	Channel  notify.Channel
	Since    time.Time
	Records  []models.PageRecord
	Messages []packer.Message
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used to compute the eviction cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRetention overrides RetentionWindow.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		s.retention = d
	}
}

// Service runs the update and digest pipelines.
type Service struct {
	store     PageStore
	notifier  Notifier
	now       func() time.Time
	retention time.Duration
}

// New creates a Service.
func New(store PageStore, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:     store,
		notifier:  notifier,
		now:       time.Now,
		retention: RetentionWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AcceptUpdates merges each update into the store in order, then evicts the
// tenant's records older than the retention window. It returns how many
// updates were stored. The whole batch is validated first, so a
// ValidationError means nothing was written; on a storage error the updates
// before the failing one remain stored.
func (s *Service) AcceptUpdates(ctx context.Context, tenantID, projectName string, updates []models.Update) (int, error) {
	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("project", projectName))

	for i, update := range updates {
		if err := store.ValidateUpdate(tenantID, projectName, update); err != nil {
			return 0, fmt.Errorf("update %d: %w", i, err)
		}
	}

	for i, update := range updates {
		if _, err := s.store.UpsertPage(ctx, tenantID, projectName, update); err != nil {
			metrics.PagesUpsertedTotal.Add(ctx, int64(i), attrs)
			return i, fmt.Errorf("failed to store page %q: %w", update.Name, err)
		}
	}
	metrics.PagesUpsertedTotal.Add(ctx, int64(len(updates)), attrs)
	metrics.WebhooksReceivedTotal.Add(ctx, 1, attrs)

	cutoff := s.now().Add(-s.retention)
	deleted, err := s.store.EvictOlderThan(ctx, tenantID, cutoff)
	if err != nil {
		return len(updates), fmt.Errorf("failed to evict stale pages: %w", err)
	}
	if deleted > 0 {
		metrics.PagesEvictedTotal.Add(ctx, int64(deleted), attrs)
	}

	log.Info().
		Str("tenant_id", tenantID).
		Str("project", projectName).
		Int("count", len(updates)).
		Int("evicted", deleted).
		Msg("Updates accepted")

	return len(updates), nil
}

// BuildDigest renders the tenant's records updated at or after since for ch.
// No matching records yields the channel's empty-state message, not an error.
func (s *Service) BuildDigest(ctx context.Context, tenantID string, since time.Time, ch notify.Channel) (Digest, error) {
	started := time.Now()

	records, err := s.store.ListSince(ctx, tenantID, since)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to list pages: %w", err)
	}

	messages, err := s.notifier.Render(ch, records)
	if err != nil {
		return Digest{}, err
	}

	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("channel", ch.String()))
	metrics.DigestsBuiltTotal.Add(ctx, 1, attrs)
	metrics.DigestPages.Record(ctx, int64(len(records)), attrs)
	metrics.DigestBuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	log.Info().
		Str("tenant_id", tenantID).
		Str("channel", ch.String()).
		Time("since", since).
		Int("pages", len(records)).
		Int("messages", len(messages)).
		Msg("Digest built")

	return Digest{
		TenantID: tenantID,
		Channel:  ch,
		Since:    since,
		Records:  records,
		Messages: messages,
	}, nil
}

// SendDigest builds the digest and hands it to the notifier. Delivery
// failures are reported, not returned.
func (s *Service) SendDigest(ctx context.Context, tenantID string, since time.Time, ch notify.Channel) (Digest, notify.Report, error) {
	digest, err := s.BuildDigest(ctx, tenantID, since, ch)
	if err != nil {
		return Digest{}, notify.Report{}, err
	}

	report := s.notifier.Deliver(ctx, ch, digest.Messages)

	return digest, report, nil
}
