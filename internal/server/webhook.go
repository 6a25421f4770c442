package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/pagedigest/internal/models"
	"github.com/wolfeidau/pagedigest/internal/store"
)

// slackWebhook is the Slack compatible payload posted by Cosense/Scrapbox.
type slackWebhook struct {
	Text        string            `json:"text"`
	Username    string            `json:"username"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Title      string `json:"title"`
	TitleLink  string `json:"title_link"`
	Text       string `json:"text"`
	AuthorName string `json:"author_name"`
	ThumbURL   string `json:"thumb_url,omitempty"`
}

type receivedResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func (a slackAttachment) update() models.Update {
	update := models.Update{
		Name: a.Title,
		Link: a.TitleLink,
	}
	if a.AuthorName != "" {
		update.Authors = []string{a.AuthorName}
	}
	return update
}

func (s *Server) handleSlackWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	webhookID := r.PathValue("webhookId")

	var body slackWebhook
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if len(body.Attachments) == 0 {
		writeError(w, http.StatusBadRequest, "No attachments")
		return
	}

	if s.cfg.RequireRegistration {
		ok, err := s.registry.IsRegistered(ctx, webhookID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, store.ErrNotRegistered.Error())
			return
		}
	}

	// every attachment is filed under the project of the first link
	projectName := models.ProjectFromLink(body.Attachments[0].TitleLink)

	updates := make([]models.Update, 0, len(body.Attachments))
	for _, attachment := range body.Attachments {
		updates = append(updates, attachment.update())
	}

	count, err := s.pipeline.AcceptUpdates(ctx, webhookID, projectName, updates)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Str("webhook_id", webhookID).Int("stored", count).Msg("webhook partially stored")
		writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, receivedResponse{Status: "received", Count: count})
}
