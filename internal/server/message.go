package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/pagedigest/internal/models"
	"github.com/wolfeidau/pagedigest/internal/notify"
)

type messageRequest struct {
	WebhookID     string `json:"webhookId"`
	Notification  string `json:"notification"`
	FromTimestamp string `json:"from_timestamp"`
}

type sentResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	PageCount int    `json:"pageCount"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body messageRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if body.WebhookID == "" || body.Notification == "" || body.FromTimestamp == "" {
		writeError(w, http.StatusBadRequest, "webhookId, notification, and from_timestamp are required")
		return
	}

	ch, err := notify.ParseChannel(body.Notification)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	since, err := models.ParseTimestamp(body.FromTimestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from_timestamp format. Expected ISO 8601 format")
		return
	}

	digest, report, err := s.pipeline.SendDigest(ctx, body.WebhookID, since, ch)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	zerolog.Ctx(ctx).Info().
		Str("webhook_id", body.WebhookID).
		Str("channel", ch.String()).
		Int("pages", len(digest.Records)).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Bool("skipped", report.Skipped).
		Msg("digest sent")

	writeJSON(w, http.StatusOK, sentResponse{
		Status:    "sent",
		Service:   ch.String(),
		PageCount: len(digest.Records),
	})
}
