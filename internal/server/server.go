package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/pagedigest/internal/http"
	"github.com/wolfeidau/pagedigest/internal/logger"
	"github.com/wolfeidau/pagedigest/internal/models"
	"github.com/wolfeidau/pagedigest/internal/notify"
	"github.com/wolfeidau/pagedigest/internal/service"
)

const maxRequestBody = 1 << 20

// Pipeline is the update and digest pipeline behind the API.
type Pipeline interface {
	AcceptUpdates(ctx context.Context, tenantID, projectName string, updates []models.Update) (int, error)
	SendDigest(ctx context.Context, tenantID string, since time.Time, ch notify.Channel) (service.Digest, notify.Report, error)
}

// Registry issues and checks webhook ids.
type Registry interface {
	IsRegistered(ctx context.Context, tenantID string) (bool, error)
	Register(ctx context.Context, tenantID string) (models.Registration, error)
	Ping(ctx context.Context) error
}

// Config holds the API settings.
type Config struct {
	// AdminAPIKey authorizes webhook registration. Empty disables registration.
	AdminAPIKey string

	// RequireRegistration rejects webhook posts for ids not issued by registration.
	RequireRegistration bool
}

// Server serves the webhook, digest and admin routes.
type Server struct {
	pipeline Pipeline
	registry Registry
	cfg      Config
}

// NewServer creates a new server.
func NewServer(pipeline Pipeline, registry Registry, cfg Config) *Server {
	return &Server{
		pipeline: pipeline,
		registry: registry,
		cfg:      cfg,
	}
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/webhooks/{webhookId}/slack", s.handleSlackWebhook)
	mux.HandleFunc("POST /api/message", s.handleMessage)
	mux.HandleFunc("POST /api/admin/webhooks", s.handleRegisterWebhook)

	return httpmiddleware.Chain(mux,
		httpmiddleware.ClientIP(),
		logger.HTTPRequests(log),
		httpmiddleware.MaxBodyBytes(maxRequestBody),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Ping(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
