package notify

import (
	"context"
	"fmt"

	"roofcrm-backend/models"

	"google.golang.org/api/chat/v1"
	"google.golang.org/api/option"
)

// ChatBotScope is the scope a Chat app uses to post as itself
const ChatBotScope = "https://www.googleapis.com/auth/chat.bot"

// ChatChannel posts event summaries into a Google Chat space
type ChatChannel struct {
	svc   *chat.Service
	space string
}

// NewChatChannel creates a Chat poster for the given space resource name
func NewChatChannel(ctx context.Context, space string, opts ...option.ClientOption) (*ChatChannel, error) {
	svc, err := chat.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Chat client: %w", err)
	}
	return &ChatChannel{svc: svc, space: space}, nil
}

// Name implements Broadcaster
func (c *ChatChannel) Name() string {
	return "google_chat"
}

// Broadcast implements Broadcaster
func (c *ChatChannel) Broadcast(ctx context.Context, msg models.Message) error {
	_, err := c.svc.Spaces.Messages.Create(c.space, &chat.Message{Text: plainText(msg)}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("chat post to %s: %w", c.space, err)
	}
	return nil
}
