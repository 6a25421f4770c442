package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wolfeidau/pagedigest/internal/models"
	"github.com/wolfeidau/pagedigest/internal/notify"
	"github.com/wolfeidau/pagedigest/internal/service"
	"github.com/wolfeidau/pagedigest/internal/store"
)

type DigestCmd struct {
	WebhookID string        `help:"webhook id to digest" required:""`
	Channel   string        `help:"notification channel" default:"Discord" enum:"Discord,X"`
	Since     string        `help:"RFC 3339 timestamp; pages updated at or after it are included"`
	Window    time.Duration `help:"look back this far when --since is not set" default:"24h"`
	Send      bool          `help:"deliver the digest instead of printing it" default:"false"`

	Store  StoreFlags  `embed:""`
	Notify NotifyFlags `embed:""`
}

func (c *DigestCmd) Run(globals *Globals) error {
	log := setupLogging(globals)
	ctx := context.Background()

	ch, err := notify.ParseChannel(c.Channel)
	if err != nil {
		return err
	}

	since, err := c.since(time.Now())
	if err != nil {
		return err
	}

	backend, err := c.Store.openBackend(ctx, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	pipeline := service.New(store.New(backend), c.Notify.newDeliverer(ctx))

	if !c.Send {
		digest, err := pipeline.BuildDigest(ctx, c.WebhookID, since, ch)
		if err != nil {
			return err
		}
		printDigest(os.Stdout, digest)
		return nil
	}

	digest, report, err := pipeline.SendDigest(ctx, c.WebhookID, since, ch)
	if err != nil {
		return err
	}

	log.Info().
		Int("pages", len(digest.Records)).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Bool("skipped", report.Skipped).
		Msg("Digest delivered")

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d posts failed", report.Failed, report.Attempted)
	}
	return nil
}

func (c *DigestCmd) since(now time.Time) (time.Time, error) {
	if c.Since == "" {
		return now.Add(-c.Window), nil
	}
	t, err := models.ParseTimestamp(c.Since)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since: %w", err)
	}
	return t, nil
}

func printDigest(w io.Writer, digest service.Digest) {
	for i, msg := range digest.Messages {
		if i > 0 {
			_, _ = fmt.Fprintln(w, "---")
		}
		_, _ = fmt.Fprintln(w, msg.Text)
	}
}
