package service

import (
	"strings"

	"roofcrm-backend/models"
)

const (
	unknownLead   = "Unknown Lead"
	unknownPerson = "Someone"
)

type messageTemplate struct {
	subject string
	body    string
}

var notificationTemplates = map[models.NotificationEvent]messageTemplate{
	models.EventDeletionRequested: {
		subject: "Lead deletion requested: {{leadName}}",
		body: "{{requesterName}} has requested deletion of the lead {{leadName}}.\n" +
			"Email: {{leadEmail}}\nAddress: {{leadAddress}}\nStatus: {{leadStatus}}\n" +
			"Reason: {{reason}}\n\nReview the request in the CRM to approve or reject it.",
	},
	models.EventDeletionApproved: {
		subject: "Lead deleted: {{leadName}}",
		body: "{{approverName}} approved the deletion request from {{requesterName}}.\n" +
			"The lead {{leadName}} ({{leadAddress}}) has been deleted.",
	},
	models.EventDeletionRejected: {
		subject: "Deletion request rejected: {{leadName}}",
		body: "{{approverName}} rejected your request to delete the lead {{leadName}}.\n" +
			"Reason: {{rejectionReason}}",
	},
	models.EventMention: {
		subject: "{{authorName}} mentioned you on {{leadName}}",
		body:    "{{authorName}} mentioned you in a note on {{leadName}}:\n\n{{note}}",
	},
	models.EventFileUploaded: {
		subject: "File uploaded to {{leadName}}",
		body:    "{{uploaderName}} uploaded {{fileName}} to {{leadName}} via {{source}}.",
	},
}

// renderTemplate replaces {{key}} placeholders in one pass over tmpl. Inserted values are
// never rescanned. Placeholders without data become empty.
func renderTemplate(tmpl string, data map[string]string) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			break
		}
		b.WriteString(rest[:start])
		b.WriteString(data[rest[start+2:start+end]])
		rest = rest[start+end+2:]
	}
	b.WriteString(rest)
	return b.String()
}

// composeMessage renders the template for event, applying the lead and actor fallbacks.
func composeMessage(event models.NotificationEvent, data map[string]string, link string) models.Message {
	if strings.TrimSpace(data["leadName"]) == "" {
		data["leadName"] = unknownLead
	}
	for _, key := range []string{"requesterName", "approverName", "authorName", "uploaderName"} {
		if strings.TrimSpace(data[key]) == "" {
			data[key] = unknownPerson
		}
	}
	for _, key := range []string{"leadEmail", "leadAddress", "leadStatus", "reason", "rejectionReason"} {
		if strings.TrimSpace(data[key]) == "" {
			data[key] = "n/a"
		}
	}

	tmpl := notificationTemplates[event]
	return models.Message{
		Event:   event,
		Subject: renderTemplate(tmpl.subject, data),
		Body:    renderTemplate(tmpl.body, data),
		Link:    link,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
