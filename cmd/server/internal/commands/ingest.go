package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/pagedigest/internal/models"
	"github.com/wolfeidau/pagedigest/internal/service"
	"github.com/wolfeidau/pagedigest/internal/store"
	"gopkg.in/yaml.v3"
)

// IngestFile is a batch of page updates for one webhook, e.g.
//
//	webhookId: 6f1c...
//	project: myproject
//	pages:
//	  - name: Home
//	    link: https://scrapbox.io/myproject/Home
//	    authors: [alice]
type IngestFile struct {
	WebhookID string          `yaml:"webhookId"`
	Project   string          `yaml:"project"`
	Pages     []models.Update `yaml:"pages"`
}

type IngestCmd struct {
	File string `arg:"" help:"YAML file of page updates, - reads stdin"`

	Store StoreFlags `embed:""`
}

func (c *IngestCmd) Run(globals *Globals) error {
	log := setupLogging(globals)
	ctx := context.Background()

	file, err := readIngestFile(c.File)
	if err != nil {
		return err
	}

	backend, err := c.Store.openBackend(ctx, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	// delivery is not used by ingest
	pipeline := service.New(store.New(backend), nil)

	n, err := pipeline.AcceptUpdates(ctx, file.WebhookID, file.Project, file.Pages)
	if err != nil {
		return fmt.Errorf("ingested %d of %d pages: %w", n, len(file.Pages), err)
	}

	log.Info().Str("webhook_id", file.WebhookID).Int("count", n).Msg("Ingest completed")
	return nil
}

func readIngestFile(path string) (IngestFile, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return IngestFile{}, fmt.Errorf("failed to open ingest file: %w", err)
		}
		defer f.Close()
		r = f
	}

	return parseIngestFile(r)
}

func parseIngestFile(r io.Reader) (IngestFile, error) {
	var file IngestFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return IngestFile{}, fmt.Errorf("failed to decode ingest file: %w", err)
	}

	if file.WebhookID == "" {
		return IngestFile{}, errors.New("ingest file has no webhookId")
	}
	if len(file.Pages) == 0 {
		return IngestFile{}, errors.New("ingest file has no pages")
	}
	if file.Project == "" {
		file.Project = models.ProjectFromLink(file.Pages[0].Link)
	}

	return file, nil
}
