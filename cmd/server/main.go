package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/pagedigest/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug    bool `help:"Enable debug mode."`
		Version  kong.VersionFlag
		Serve    commands.ServeCmd    `cmd:"" help:"Start the webhook and digest API server"`
		Register commands.RegisterCmd `cmd:"" help:"Register a webhook id"`
		Webhooks commands.WebhooksCmd `cmd:"" help:"List registered webhook ids"`
		Ingest   commands.IngestCmd   `cmd:"" help:"Store page updates from a YAML file"`
		Digest   commands.DigestCmd   `cmd:"" help:"Build or send a digest of recent page updates"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("pagedigest"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
