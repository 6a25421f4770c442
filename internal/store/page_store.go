package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pagedigest/internal/kv"
	"github.com/wolfeidau/pagedigest/internal/models"
)

const (
	pagesRoot         = "webhookId"
	projectPart       = "projectName"
	pagePart          = "pageName"
	registrationsRoot = "webhooks"
)

// pageValue is the stored JSON form of a page record.
type pageValue struct {
	ProjectName string   `json:"projectName"`
	Name        string   `json:"name"`
	Link        string   `json:"link"`
	Authors     []string `json:"authors"`
	UpdatedAt   string   `json:"updatedAt"`
}

type registrationValue struct {
	Registered bool   `json:"registered"`
	CreatedAt  string `json:"createdAt"`
}

// Option configures a PageStore.
type Option func(*PageStore)

// WithClock replaces the wall clock used to stamp writes.
func WithClock(now func() time.Time) Option {
	return func(s *PageStore) {
		s.now = now
	}
}

// PageStore keeps page records per tenant on top of a kv.Backend. Writes merge
// into the existing record rather than replacing it.
//
// Merges are an unconditional read-then-write: two concurrent writes to the
// same page can lose authors from one of them.
type PageStore struct {
	backend kv.Backend
	now     func() time.Time
}

// New creates a PageStore over backend.
func New(backend kv.Backend, opts ...Option) *PageStore {
	s := &PageStore{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pageKey(tenantID, projectName, pageName string) kv.Key {
	return kv.Key{pagesRoot, tenantID, projectPart, projectName, pagePart, pageName}
}

func tenantPrefix(tenantID string) kv.Key {
	return kv.Key{pagesRoot, tenantID}
}

func registrationKey(tenantID string) kv.Key {
	return kv.Key{registrationsRoot, tenantID}
}

func validatePart(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if strings.Contains(value, kv.Separator) {
		return &ValidationError{Field: field, Reason: "contains a reserved character"}
	}
	return nil
}

// ValidateUpdate checks the identity components UpsertPage would key update
// under and returns a *ValidationError for the first bad one.
func ValidateUpdate(tenantID, projectName string, update models.Update) error {
	for _, part := range []struct{ field, value string }{
		{"tenantId", tenantID},
		{"projectName", projectName},
		{"pageName", update.Name},
	} {
		if err := validatePart(part.field, part.value); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPage merges update into the record identified by (tenantID,
// projectName, update.Name). Authors become the union of the incoming and
// stored lists, incoming first, and UpdatedAt is set to now. The stored
// record is returned.
func (s *PageStore) UpsertPage(ctx context.Context, tenantID, projectName string, update models.Update) (models.PageRecord, error) {
	if err := ValidateUpdate(tenantID, projectName, update); err != nil {
		return models.PageRecord{}, err
	}

	key := pageKey(tenantID, projectName, update.Name)

	authors := models.MergeAuthors(update.Authors, nil)

	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return models.PageRecord{}, storageError("get page", err)
	}
	if ok {
		var existing pageValue
		if err := json.Unmarshal(raw, &existing); err != nil {
			return models.PageRecord{}, storageError("decode page", fmt.Errorf("%w: %w", kv.ErrCorrupt, err))
		}
		authors = models.MergeAuthors(update.Authors, existing.Authors)
	}

	now := s.now()
	value := pageValue{
		ProjectName: projectName,
		Name:        update.Name,
		Link:        update.Link,
		Authors:     authors,
		UpdatedAt:   models.FormatTimestamp(now),
	}

	data, err := json.Marshal(value)
	if err != nil {
		return models.PageRecord{}, storageError("encode page", err)
	}

	if err := s.backend.Set(ctx, key, data); err != nil {
		return models.PageRecord{}, storageError("set page", err)
	}

	log.Debug().
		Str("tenant_id", tenantID).
		Str("project", projectName).
		Str("page", update.Name).
		Strs("authors", authors).
		Bool("merged", ok).
		Msg("Page upserted")

	return models.PageRecord{
		TenantID:    tenantID,
		ProjectName: projectName,
		Name:        update.Name,
		Link:        update.Link,
		Authors:     authors,
		UpdatedAt:   now,
	}, nil
}

// EvictOlderThan deletes every record of tenantID whose UpdatedAt is strictly
// before cutoff and returns how many were deleted. Records with an unreadable
// UpdatedAt are left in place.
func (s *PageStore) EvictOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int, error) {
	if err := validatePart("tenantId", tenantID); err != nil {
		return 0, err
	}

	records, err := s.scan(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, rec := range records {
		if !rec.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := s.backend.Delete(ctx, rec.key); err != nil {
			return deleted, storageError("delete page", err)
		}
		deleted++
	}

	if deleted > 0 {
		log.Info().
			Str("tenant_id", tenantID).
			Time("cutoff", cutoff).
			Int("deleted", deleted).
			Msg("Evicted stale pages")
	}

	return deleted, nil
}

// ListSince returns the records of tenantID with UpdatedAt at or after since,
// in key order.
func (s *PageStore) ListSince(ctx context.Context, tenantID string, since time.Time) ([]models.PageRecord, error) {
	if err := validatePart("tenantId", tenantID); err != nil {
		return nil, err
	}

	records, err := s.scan(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	pages := make([]models.PageRecord, 0, len(records))
	for _, rec := range records {
		if rec.UpdatedAt.Before(since) {
			continue
		}
		pages = append(pages, rec.PageRecord)
	}

	return pages, nil
}

type scannedRecord struct {
	models.PageRecord
	key kv.Key
}

// scan decodes every record under the tenant prefix. Undecodable JSON fails
// the scan; a missing or unparseable updatedAt only skips that record.
func (s *PageStore) scan(ctx context.Context, tenantID string) ([]scannedRecord, error) {
	entries, err := s.backend.List(ctx, tenantPrefix(tenantID))
	if err != nil {
		return nil, storageError("list pages", err)
	}

	records := make([]scannedRecord, 0, len(entries))
	for _, entry := range entries {
		var value pageValue
		if err := json.Unmarshal(entry.Value, &value); err != nil {
			return nil, storageError("decode page", fmt.Errorf("%w: key %s: %w", kv.ErrCorrupt, entry.Key, err))
		}

		if value.UpdatedAt == "" {
			log.Warn().Str("key", entry.Key.String()).Msg("Page has no updatedAt, skipping")
			continue
		}

		updatedAt, err := models.ParseTimestamp(value.UpdatedAt)
		if err != nil {
			log.Warn().Err(err).Str("key", entry.Key.String()).Msg("Page has unparseable updatedAt, skipping")
			continue
		}

		records = append(records, scannedRecord{
			key: entry.Key,
			PageRecord: models.PageRecord{
				TenantID:    tenantID,
				ProjectName: value.ProjectName,
				Name:        value.Name,
				Link:        value.Link,
				Authors:     value.Authors,
				UpdatedAt:   updatedAt,
			},
		})
	}

	return records, nil
}

// IsRegistered reports whether tenantID was issued by Register.
func (s *PageStore) IsRegistered(ctx context.Context, tenantID string) (bool, error) {
	if err := validatePart("tenantId", tenantID); err != nil {
		return false, err
	}

	_, ok, err := s.backend.Get(ctx, registrationKey(tenantID))
	if err != nil {
		return false, storageError("get registration", err)
	}

	return ok, nil
}

// Register records tenantID as issued. Registering twice refreshes CreatedAt.
func (s *PageStore) Register(ctx context.Context, tenantID string) (models.Registration, error) {
	if err := validatePart("tenantId", tenantID); err != nil {
		return models.Registration{}, err
	}

	now := s.now()
	data, err := json.Marshal(registrationValue{
		Registered: true,
		CreatedAt:  models.FormatTimestamp(now),
	})
	if err != nil {
		return models.Registration{}, storageError("encode registration", err)
	}

	if err := s.backend.Set(ctx, registrationKey(tenantID), data); err != nil {
		return models.Registration{}, storageError("set registration", err)
	}

	log.Info().Str("tenant_id", tenantID).Msg("Webhook registered")

	return models.Registration{
		TenantID:   tenantID,
		Registered: true,
		CreatedAt:  now,
	}, nil
}

// ListRegistrations returns every registered tenant in key order.
func (s *PageStore) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	entries, err := s.backend.List(ctx, kv.Key{registrationsRoot})
	if err != nil {
		return nil, storageError("list registrations", err)
	}

	registrations := make([]models.Registration, 0, len(entries))
	for _, entry := range entries {
		if len(entry.Key) != 2 {
			continue
		}

		var value registrationValue
		if err := json.Unmarshal(entry.Value, &value); err != nil {
			return nil, storageError("decode registration", fmt.Errorf("%w: key %s: %w", kv.ErrCorrupt, entry.Key, err))
		}

		reg := models.Registration{
			TenantID:   entry.Key[1],
			Registered: value.Registered,
		}
		if createdAt, err := models.ParseTimestamp(value.CreatedAt); err == nil {
			reg.CreatedAt = createdAt
		}

		registrations = append(registrations, reg)
	}

	return registrations, nil
}

// Ping checks the backend is reachable.
func (s *PageStore) Ping(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return storageError("ping", err)
	}
	return nil
}
