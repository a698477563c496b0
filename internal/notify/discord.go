package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"botevents-api/internal/logger"
)

// webhookExecutor is the subset of *discordgo.Session used to post.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts notices to a Discord webhook in the background.
type DiscordNotifier struct {
	exec    webhookExecutor
	id      string
	token   string
	timeout time.Duration

	wg sync.WaitGroup
}

// NewDiscordNotifier creates a notifier for a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func NewDiscordNotifier(webhookURL string, timeout time.Duration) (*DiscordNotifier, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Client.Timeout = timeout

	return newDiscordNotifier(session, id, token, timeout), nil
}

func newDiscordNotifier(exec webhookExecutor, id, token string, timeout time.Duration) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DiscordNotifier{exec: exec, id: id, token: token, timeout: timeout}
}

// ParseWebhookURL extracts the webhook id and token.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid webhook url: expected /api/webhooks/{id}/{token}")
}

// Notify posts n in a new goroutine and returns immediately.
func (d *DiscordNotifier) Notify(ctx context.Context, n Notice) {
	embed := Embed(n)
	log := logger.FromContext(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		_, err := d.exec.WebhookExecute(d.id, d.token, false, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{embed},
		}, discordgo.WithContext(sendCtx))
		if err != nil {
			log.Warn("[Notify] Failed to send discord notification", "kind", n.Kind, "error", err)
		}
	}()
}

// Close waits for in-flight notifications.
func (d *DiscordNotifier) Close() error {
	d.wg.Wait()
	return nil
}

var (
	_ Notifier = (*DiscordNotifier)(nil)
	_ Notifier = Nop{}
)
