package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"roofcrm-backend/models"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"gopkg.in/gomail.v2"
)

// GmailScope is the only Gmail scope the channel needs
const GmailScope = gmail.GmailSendScope

// GmailChannel sends notification emails through the Gmail API
type GmailChannel struct {
	svc      *gmail.Service
	from     string
	fromName string
}

// NewGmailChannel creates a Gmail sender. Credentials come in as client options.
func NewGmailChannel(ctx context.Context, from, fromName string, opts ...option.ClientOption) (*GmailChannel, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail client: %w", err)
	}
	return &GmailChannel{svc: svc, from: from, fromName: fromName}, nil
}

// Name implements Channel
func (g *GmailChannel) Name() string {
	return "gmail"
}

// Send builds a MIME message and submits it as the authenticated user
func (g *GmailChannel) Send(ctx context.Context, to models.Recipient, msg models.Message) error {
	raw, err := g.buildMIME(to, msg)
	if err != nil {
		return err
	}

	_, err = g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send to %s: %w", to.Email, err)
	}
	return nil
}

func (g *GmailChannel) buildMIME(to models.Recipient, msg models.Message) ([]byte, error) {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", g.from, g.fromName)
	m.SetAddressHeader("To", to.Email, to.Name)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", textBody(msg))
	m.AddAlternative("text/html", htmlBody(msg))

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to build email: %w", err)
	}
	return buf.Bytes(), nil
}

func textBody(msg models.Message) string {
	if msg.Link == "" {
		return msg.Body
	}
	return msg.Body + "\n\n" + msg.Link
}

func htmlBody(msg models.Message) string {
	var b strings.Builder
	for _, line := range strings.Split(msg.Body, "\n") {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	if msg.Link != "" {
		fmt.Fprintf(&b, `<p><a href="%s">Open in CRM</a></p>`, html.EscapeString(msg.Link))
	}
	return b.String()
}
