package menu

import "strings"

// Tag is the namespace of a structured list reply.
type Tag int

const (
	TagUnknown Tag = iota
	TagCategory
	TagOption
)

const (
	categoryPrefix = "CAT_"
	optionPrefix   = "OPT_"
)

func (t Tag) String() string {
	switch t {
	case TagCategory:
		return "category"
	case TagOption:
		return "option"
	default:
		return "unknown"
	}
}

// Selection is a list-reply id decoded once at the webhook boundary.
type Selection struct {
	Tag Tag
	ID  string
}

// ParseSelection decodes a raw reply id. Ids outside both namespaces, or a
// bare prefix with nothing after it, decode to TagUnknown.
func ParseSelection(raw string) Selection {
	id := strings.TrimSpace(raw)
	switch {
	case len(id) > len(categoryPrefix) && strings.HasPrefix(id, categoryPrefix):
		return Selection{Tag: TagCategory, ID: id}
	case len(id) > len(optionPrefix) && strings.HasPrefix(id, optionPrefix):
		return Selection{Tag: TagOption, ID: id}
	default:
		return Selection{Tag: TagUnknown, ID: id}
	}
}
