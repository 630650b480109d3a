package whatsapp

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/goodchoice-relay/internal/menu"
)

// ParseInbound extracts the first message of the first change of the first
// entry. ok is false when the body is not a webhook envelope or carries no
// message (status callbacks, for example).
func ParseInbound(body []byte) (InboundMessage, bool) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return InboundMessage{}, false
	}
	return FirstMessage(event)
}

// FirstMessage normalizes the first message found in event.
func FirstMessage(event WebhookEvent) (InboundMessage, bool) {
	if len(event.Entry) == 0 || len(event.Entry[0].Changes) == 0 {
		return InboundMessage{}, false
	}
	messages := event.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return InboundMessage{}, false
	}
	return normalize(messages[0]), true
}

func normalize(m Message) InboundMessage {
	msg := InboundMessage{
		ID:        strings.TrimSpace(m.ID),
		From:      strings.TrimSpace(m.From),
		Kind:      KindOther,
		Timestamp: parseTimestamp(m.Timestamp),
	}
	switch {
	case m.Type == "text" && m.Text != nil:
		msg.Kind = KindText
		msg.Text = strings.ToLower(strings.TrimSpace(m.Text.Body))
	case m.Type == "interactive" && m.Interactive != nil:
		reply := m.Interactive.ListReply
		if reply == nil {
			reply = m.Interactive.ButtonReply
		}
		if reply != nil {
			msg.Kind = KindInteractive
			msg.Selection = menu.ParseSelection(reply.ID)
		}
	}
	return msg
}

func parseTimestamp(raw string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
