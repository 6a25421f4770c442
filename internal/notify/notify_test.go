package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pagedigest/internal/models"
	"github.com/wolfeidau/pagedigest/internal/packer"
)

var fastRetry = RetryConfig{
	MaxTries:        3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		input   string
		want    Channel
		wantErr bool
	}{
		{input: "Discord", want: Discord},
		{input: "X", want: X},
		{input: "discord", wantErr: true},
		{input: "Slack", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChannel(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownChannel)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDiscordTransport_Post(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	transport := NewDiscordTransport(server.URL, WithRetry(fastRetry))
	require.True(t, transport.Configured())

	id, err := transport.Post(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Empty(t, id)
	require.Equal(t, map[string]string{"content": "hello"}, got)

	require.False(t, NewDiscordTransport("").Configured())
}

func TestDiscordTransport_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	transport := NewDiscordTransport(server.URL, WithRetry(fastRetry))

	_, err := transport.Post(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestDiscordTransport_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad webhook", http.StatusBadRequest)
	}))
	defer server.Close()

	transport := NewDiscordTransport(server.URL, WithRetry(fastRetry))

	_, err := transport.Post(context.Background(), "hello", "")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Equal(t, int32(1), calls.Load())
}

func TestXTransport_PostThread(t *testing.T) {
	var requests []createPostRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets", r.URL.Path)
		require.Equal(t, "Bearer static-token", r.Header.Get("Authorization"))

		var req createPostRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"data":{"id":"%d","text":%q}}`, 100+len(requests), req.Text)
	}))
	defer server.Close()

	transport := NewXTransport(context.Background(), XConfig{
		BaseURL:     server.URL,
		AccessToken: "static-token",
	}, WithRetry(fastRetry))
	require.True(t, transport.Configured())

	id, err := transport.Post(context.Background(), "first", "")
	require.NoError(t, err)
	require.Equal(t, "101", id)

	id, err = transport.Post(context.Background(), "second", id)
	require.NoError(t, err)
	require.Equal(t, "102", id)

	require.Len(t, requests, 2)
	require.Nil(t, requests[0].Reply)
	require.Equal(t, "101", requests[1].Reply.InReplyToTweetID)
}

func TestXTransport_RefreshesToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "refresh-me", r.PostForm.Get("refresh_token"))

		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "client-id", user)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","token_type":"bearer","expires_in":7200,"refresh_token":"next"}`))
	})
	mux.HandleFunc("/2/tweets", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"7","text":"hi"}}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	transport := NewXTransport(context.Background(), XConfig{
		BaseURL:      server.URL,
		TokenURL:     server.URL + "/oauth2/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-me",
	}, WithRetry(fastRetry))

	id, err := transport.Post(context.Background(), "hi", "")
	require.NoError(t, err)
	require.Equal(t, "7", id)
}

func TestXTransport_Unconfigured(t *testing.T) {
	transport := NewXTransport(context.Background(), XConfig{})
	require.False(t, transport.Configured())
}

type fakeTransport struct {
	configured bool
	failOn     int
	texts      []string
	replies    []string
}

func (f *fakeTransport) Configured() bool { return f.configured }

func (f *fakeTransport) Post(ctx context.Context, text, replyTo string) (string, error) {
	f.texts = append(f.texts, text)
	f.replies = append(f.replies, replyTo)
	if f.failOn == len(f.texts) {
		return "", errors.New("boom")
	}
	return fmt.Sprintf("id-%d", len(f.texts)), nil
}

func messages(texts ...string) []packer.Message {
	msgs := make([]packer.Message, 0, len(texts))
	for _, text := range texts {
		msgs = append(msgs, packer.Message{Text: text})
	}
	return msgs
}

func TestDeliverer_ThreadsPosts(t *testing.T) {
	transport := &fakeTransport{configured: true}
	d := NewDeliverer(WithRoute(X, Route{Transport: transport}), WithRateLimit(0, 0))

	report := d.Deliver(context.Background(), X, messages("one", "two", "three"))

	require.Equal(t, Report{
		Channel:   X,
		Attempted: 3,
		Sent:      3,
		PostIDs:   []string{"id-1", "id-2", "id-3"},
	}, report)
	require.Equal(t, []string{"", "id-1", "id-2"}, transport.replies)
}

func TestDeliverer_SwallowsFailure(t *testing.T) {
	transport := &fakeTransport{configured: true, failOn: 2}
	d := NewDeliverer(WithRoute(Discord, Route{Transport: transport}), WithRateLimit(0, 0))

	report := d.Deliver(context.Background(), Discord, messages("one", "two", "three"))

	require.Equal(t, 1, report.Sent)
	require.Equal(t, 2, report.Failed)
	require.Len(t, transport.texts, 2)
}

func TestDeliverer_SkipsUnconfigured(t *testing.T) {
	transport := &fakeTransport{}
	d := NewDeliverer(WithRoute(Discord, Route{Transport: transport}))

	report := d.Deliver(context.Background(), Discord, messages("one"))
	require.True(t, report.Skipped)
	require.Empty(t, transport.texts)

	report = NewDeliverer().Deliver(context.Background(), X, messages("one"))
	require.True(t, report.Skipped)
}

func TestDeliverer_Render(t *testing.T) {
	d := NewDeliverer()

	msgs, err := d.Render(Discord, nil)
	require.NoError(t, err)
	require.Equal(t, packer.EmptyMessage, msgs[0].Text)

	msgs, err = d.Render(X, []models.PageRecord{{Name: "Page", Link: "https://scrapbox.io/p/Page", Authors: []string{"a"}}})
	require.NoError(t, err)
	require.Equal(t, "📝 Page updates (1)\n\nPage\nby a\nhttps://scrapbox.io/p/Page", msgs[0].Text)

	_, err = d.Render(Channel("Slack"), nil)
	require.ErrorIs(t, err, ErrUnknownChannel)
}

func TestDeliverer_CustomRenderer(t *testing.T) {
	d := NewDeliverer(WithRoute(X, Route{Renderer: packer.LengthConstrained{MaxPosts: 4}}))

	records := make([]models.PageRecord, 0, 20)
	for i := range 20 {
		records = append(records, models.PageRecord{
			Name:    fmt.Sprintf("Page-%02d", i),
			Link:    fmt.Sprintf("https://scrapbox.io/p/Page-%02d", i),
			Authors: []string{"alice"},
		})
	}

	msgs, err := d.Render(X, records)
	require.NoError(t, err)
	require.Greater(t, len(msgs), 1)
}
