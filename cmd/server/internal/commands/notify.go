package commands

import (
	"context"
	"time"

	"github.com/wolfeidau/pagedigest/internal/notify"
	"github.com/wolfeidau/pagedigest/internal/packer"
)

// NotifyFlags configures the outbound channels. A channel without
// credentials renders its digest but only logs it.
type NotifyFlags struct {
	DiscordWebhookURL string `help:"Discord webhook URL" env:"DISCORD_WEBHOOK_URL"`

	XClientID     string `help:"X OAuth 2.0 client ID" env:"X_CLIENT_ID"`
	XClientSecret string `help:"X OAuth 2.0 client secret" env:"X_CLIENT_SECRET"`
	XAccessToken  string `help:"X OAuth 2.0 user access token" env:"X_ACCESS_TOKEN"`
	XRefreshToken string `help:"X OAuth 2.0 refresh token, enables token refresh" env:"X_REFRESH_TOKEN"`
	XThreadPosts  int    `help:"maximum posts per X digest, more than one posts a thread" default:"1" env:"PAGEDIGEST_X_THREAD_POSTS"`

	RetryMaxTries uint          `help:"attempts per post before giving up" default:"4"`
	PostInterval  time.Duration `help:"minimum interval between consecutive posts" default:"1s"`
}

func (n *NotifyFlags) newDeliverer(ctx context.Context) *notify.Deliverer {
	retry := notify.DefaultRetryConfig()
	if n.RetryMaxTries > 0 {
		retry.MaxTries = n.RetryMaxTries
	}

	perSecond := 0.0
	if n.PostInterval > 0 {
		perSecond = float64(time.Second) / float64(n.PostInterval)
	}

	return notify.NewDeliverer(
		notify.WithRoute(notify.Discord, notify.Route{
			Transport: notify.NewDiscordTransport(n.DiscordWebhookURL, notify.WithRetry(retry)),
		}),
		notify.WithRoute(notify.X, notify.Route{
			Renderer: packer.LengthConstrained{MaxPosts: n.XThreadPosts},
			Transport: notify.NewXTransport(ctx, notify.XConfig{
				ClientID:     n.XClientID,
				ClientSecret: n.XClientSecret,
				AccessToken:  n.XAccessToken,
				RefreshToken: n.XRefreshToken,
			}, notify.WithRetry(retry)),
		}),
		notify.WithRateLimit(perSecond, 1),
	)
}
