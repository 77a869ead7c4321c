package notify

import (
	"context"
	"fmt"
	"net/http"

	"roofcrm-backend/models"

	"github.com/slack-go/slack"
)

// SlackChannel posts event summaries to a Slack incoming webhook
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

// NewSlackChannel creates a webhook poster. A nil client uses http.DefaultClient.
func NewSlackChannel(webhookURL string, client *http.Client) *SlackChannel {
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackChannel{webhookURL: webhookURL, client: client}
}

// Name implements Broadcaster
func (s *SlackChannel) Name() string {
	return "slack"
}

// Broadcast implements Broadcaster
func (s *SlackChannel) Broadcast(ctx context.Context, msg models.Message) error {
	text := fmt.Sprintf("*%s*\n%s", msg.Subject, msg.Body)
	if msg.Link != "" {
		text += fmt.Sprintf("\n<%s|Open in CRM>", msg.Link)
	}

	err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, &slack.WebhookMessage{Text: text})
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
