package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const (
	defaultXBaseURL  = "https://api.x.com"
	defaultXTokenURL = "https://api.x.com/2/oauth2/token"
)

// XConfig holds OAuth 2.0 user-context credentials for the X API v2.
//
// With a RefreshToken the access token is refreshed on demand through the
// token endpoint; otherwise AccessToken is used as a static bearer token.
type XConfig struct {
	BaseURL  string
	TokenURL string

	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
}

// XTransport creates posts through the X API v2.
type XTransport struct {
	baseURL    string
	configured bool
	client     *http.Client
	opts       transportOptions
}

var _ Transport = (*XTransport)(nil)

type createPostRequest struct {
	Text  string     `json:"text"`
	Reply *postReply `json:"reply,omitempty"`
}

type postReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createPostResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// NewXTransport builds an authenticated transport. ctx carries the base HTTP
// client used for token refreshes and must outlive the transport.
func NewXTransport(ctx context.Context, cfg XConfig, opts ...TransportOption) *XTransport {
	o := newTransportOptions(opts)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultXBaseURL
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultXTokenURL
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.client)

	var ts oauth2.TokenSource
	if cfg.RefreshToken != "" {
		conf := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		ts = conf.TokenSource(ctx, &oauth2.Token{
			AccessToken:  cfg.AccessToken,
			RefreshToken: cfg.RefreshToken,
		})
	} else {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	}

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = o.client.Timeout

	return &XTransport{
		baseURL:    baseURL,
		configured: cfg.AccessToken != "" || cfg.RefreshToken != "",
		client:     client,
		opts:       o,
	}
}

func (x *XTransport) Configured() bool {
	return x.configured
}

// Post creates a post, as a reply to replyTo when it is set.
func (x *XTransport) Post(ctx context.Context, text, replyTo string) (string, error) {
	body := createPostRequest{Text: text}
	if replyTo != "" {
		body.Reply = &postReply{InReplyToTweetID: replyTo}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode post: %w", err)
	}

	raw, err := do(ctx, x.client, x.opts.retry, X, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+"/2/tweets", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create post: %w", err)
	}

	var resp createPostResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to decode post response: %w", err)
	}

	return resp.Data.ID, nil
}
