package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type registerRequest struct {
	APIKey string `json:"apiKey"`
}

type registeredResponse struct {
	Status    string `json:"status"`
	WebhookID string `json:"webhookId"`
	Message   string `json:"message,omitempty"`
}

func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body registerRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if body.APIKey == "" {
		writeError(w, http.StatusBadRequest, "apiKey is required")
		return
	}

	if s.cfg.AdminAPIKey == "" {
		zerolog.Ctx(ctx).Error().Msg("admin api key is not configured")
		writeError(w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	if subtle.ConstantTimeCompare([]byte(body.APIKey), []byte(s.cfg.AdminAPIKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	webhookID := uuid.NewString()

	registered, err := s.registry.IsRegistered(ctx, webhookID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if registered {
		writeJSON(w, http.StatusOK, registeredResponse{
			Status:    "already_registered",
			WebhookID: webhookID,
			Message:   "This webhook ID is already registered",
		})
		return
	}

	if _, err := s.registry.Register(ctx, webhookID); err != nil {
		writeFailure(w, r, err)
		return
	}

	zerolog.Ctx(ctx).Info().Str("webhook_id", webhookID).Msg("webhook registered")

	writeJSON(w, http.StatusCreated, registeredResponse{
		Status:    "registered",
		WebhookID: webhookID,
	})
}
