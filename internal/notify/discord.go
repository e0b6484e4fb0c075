package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/hideout/internal/bridge"
)

// webhookSession abstracts the discordgo.Session method we use, enabling
// test mocks.
type webhookSession interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts events to a channel webhook.
type Discord struct {
	sess      webhookSession
	webhookID string
	token     string
}

// NewDiscord creates a Discord sink from a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func NewDiscord(webhookURL string) (*Discord, error) {
	id, token, err := parseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution is authenticated by the token in the path.
	dg, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: discord: %w", err)
	}
	return &Discord{sess: dg, webhookID: id, token: token}, nil
}

func parseDiscordWebhook(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("notify: discord: invalid webhook url")
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("notify: discord: webhook url has no id/token")
}

// Notify implements bridge.Notifier.
func (d *Discord) Notify(ctx context.Context, ev bridge.Event) error {
	_, err := d.sess.WebhookExecute(d.webhookID, d.token, false, &discordgo.WebhookParams{
		Content: summary(ev),
		Embeds:  []*discordgo.MessageEmbed{eventToEmbed(ev)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify: discord: %w", err)
	}
	return nil
}

func eventToEmbed(ev bridge.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Prompt,
		Description: "```lua\n" + codePreview(ev.Code) + "\n```",
		Color:       0x36a64f,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Type", Value: ev.CommandType, Inline: true},
			{Name: "Project", Value: ev.ProjectID, Inline: true},
			{Name: "Origin", Value: string(ev.Origin), Inline: true},
		},
	}
	if !ev.CreatedAt.IsZero() {
		embed.Timestamp = ev.CreatedAt.UTC().Format(time.RFC3339)
	}
	return embed
}
