// Package relay turns accepted WhatsApp messages into menu replies and
// generated exhibits.
package relay

import (
	"strings"

	"github.com/wolfman30/goodchoice-relay/internal/menu"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
)

// EventKind is the conversation event derived from one inbound message.
type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventGreeting
	EventCategorySelected
	EventOptionSelected
)

func (k EventKind) String() string {
	switch k {
	case EventGreeting:
		return "greeting"
	case EventCategorySelected:
		return "category_selected"
	case EventOptionSelected:
		return "option_selected"
	default:
		return "unrecognized"
	}
}

// Event is a classified inbound message. ID carries the category or option
// id for selection events.
type Event struct {
	Kind EventKind
	ID   string
}

var greetings = map[string]struct{}{
	"hi":    {},
	"hello": {},
	"start": {},
}

// Classify maps every inbound message to exactly one event. Greeting text
// wins over any selection.
func Classify(msg whatsapp.InboundMessage) Event {
	if _, ok := greetings[strings.ToLower(strings.TrimSpace(msg.Text))]; ok {
		return Event{Kind: EventGreeting}
	}
	switch msg.Selection.Tag {
	case menu.TagCategory:
		return Event{Kind: EventCategorySelected, ID: msg.Selection.ID}
	case menu.TagOption:
		return Event{Kind: EventOptionSelected, ID: msg.Selection.ID}
	default:
		return Event{Kind: EventUnrecognized}
	}
}
