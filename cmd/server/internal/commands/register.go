package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/wolfeidau/pagedigest/internal/models"
	"github.com/wolfeidau/pagedigest/internal/store"
)

type RegisterCmd struct {
	WebhookID string `help:"webhook id to register, a new UUID when empty" default:""`

	Store StoreFlags `embed:""`
}

func (c *RegisterCmd) Run(globals *Globals) error {
	log := setupLogging(globals)
	ctx := context.Background()

	backend, err := c.Store.openBackend(ctx, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	webhookID := c.WebhookID
	if webhookID == "" {
		webhookID = uuid.NewString()
	}

	reg, err := store.New(backend).Register(ctx, webhookID)
	if err != nil {
		return fmt.Errorf("failed to register webhook: %w", err)
	}

	printRegistration(os.Stdout, reg)
	return nil
}

type WebhooksCmd struct {
	Store StoreFlags `embed:""`
}

func (c *WebhooksCmd) Run(globals *Globals) error {
	log := setupLogging(globals)
	ctx := context.Background()

	backend, err := c.Store.openBackend(ctx, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	registrations, err := store.New(backend).ListRegistrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}

	for _, reg := range registrations {
		printRegistration(os.Stdout, reg)
	}
	return nil
}

func printRegistration(w io.Writer, reg models.Registration) {
	_, _ = fmt.Fprintf(w, "%s\t%s\n", reg.TenantID, models.FormatTimestamp(reg.CreatedAt))
}
