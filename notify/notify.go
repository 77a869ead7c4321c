// Package notify contains the delivery channels the notification service fans out to.
package notify

import (
	"context"

	"roofcrm-backend/models"
)

// Channel delivers a message to a single recipient
type Channel interface {
	Name() string
	Send(ctx context.Context, to models.Recipient, msg models.Message) error
}

// Broadcaster posts one message per event to a shared team space
type Broadcaster interface {
	Name() string
	Broadcast(ctx context.Context, msg models.Message) error
}

// plainText renders a message for chat-style channels.
func plainText(msg models.Message) string {
	text := "*" + msg.Subject + "*\n" + msg.Body
	if msg.Link != "" {
		text += "\n" + msg.Link
	}
	return text
}
