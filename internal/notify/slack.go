package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/zulandar/hideout/internal/bridge"
)

// Slack posts events to an incoming webhook.
type Slack struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlack creates a Slack sink for the given incoming webhook URL.
func NewSlack(webhookURL string) (*Slack, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("notify: slack: webhook url is required")
	}
	return &Slack{webhookURL: webhookURL, post: slack.PostWebhookContext}, nil
}

// Notify implements bridge.Notifier.
func (s *Slack) Notify(ctx context.Context, ev bridge.Event) error {
	if err := s.post(ctx, s.webhookURL, slackMessage(ev)); err != nil {
		return fmt.Errorf("notify: slack: %w", err)
	}
	return nil
}

func slackMessage(ev bridge.Event) *slack.WebhookMessage {
	return &slack.WebhookMessage{
		Text: summary(ev),
		Attachments: []slack.Attachment{{
			Color:  "#36a64f",
			Title:  ev.Prompt,
			Text:   "```" + codePreview(ev.Code) + "```",
			Footer: fmt.Sprintf("user %s via %s", ev.UserID, ev.Origin),
		}},
	}
}
