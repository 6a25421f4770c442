package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/wolfeidau/pagedigest/internal/server"
	"github.com/wolfeidau/pagedigest/internal/service"
	"github.com/wolfeidau/pagedigest/internal/store"
	"github.com/wolfeidau/pagedigest/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8000" env:"PAGEDIGEST_LISTEN"`
	Cert   string `help:"path to TLS cert file, serves plain HTTP when empty" default:"" env:"PAGEDIGEST_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"PAGEDIGEST_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"*" env:"PAGEDIGEST_CORS_ORIGINS"`

	// Admin and webhook configuration
	AdminAPIKey         string `help:"shared secret for webhook registration" env:"ADMIN_API_KEY"`
	RequireRegistration bool   `help:"reject webhook posts for unregistered webhook ids" default:"false" env:"PAGEDIGEST_REQUIRE_REGISTRATION"`

	// Telemetry
	Tracing     bool    `help:"enable tracing" default:"false" env:"PAGEDIGEST_TRACING"`
	SampleRatio float64 `help:"trace sampling ratio, 1 samples everything" default:"1" env:"PAGEDIGEST_TRACE_SAMPLE_RATIO"`

	Store  StoreFlags  `embed:""`
	Notify NotifyFlags `embed:""`
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := setupLogging(globals)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "pagedigest-server",
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	backend, err := c.Store.openBackend(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	if c.AdminAPIKey == "" {
		log.Warn().Msg("ADMIN_API_KEY is not set, webhook registration is disabled")
	}

	pages := store.New(backend)
	pipeline := service.New(pages, c.Notify.newDeliverer(ctx))

	srv := server.NewServer(pipeline, pages, server.Config{
		AdminAPIKey:         c.AdminAPIKey,
		RequireRegistration: c.RequireRegistration,
	})

	handler := withCORS(c.CORSOrigins, srv.Handler(log))
	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "pagedigest")
	}

	httpServer := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", c.Cert != "").Msg("Starting HTTP server")
		if c.Cert != "" {
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

// withCORS adds CORS support to the API handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return middleware.Handler(h)
}
