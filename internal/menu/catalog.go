// Package menu holds the static habit catalog shown to chat users and the
// decoding of list-reply ids into typed selections.
package menu

// Option is one selectable habit inside a category.
type Option struct {
	ID          string
	Title       string
	Description string
	Prompt      string
}

// Category groups options under a list section.
type Category struct {
	ID      string
	Title   string
	Body    string
	Options []Option
}

// Catalog is the immutable menu loaded at process start.
type Catalog struct {
	welcome    string
	categories []Category
	byCategory map[string]int
	prompts    map[string]string
}

// NewCatalog indexes the given categories. Later duplicates of an option id
// are ignored so every option resolves to exactly one prompt.
func NewCatalog(welcome string, categories []Category) *Catalog {
	c := &Catalog{
		welcome:    welcome,
		categories: make([]Category, 0, len(categories)),
		byCategory: make(map[string]int, len(categories)),
		prompts:    make(map[string]string),
	}
	for _, cat := range categories {
		if _, dup := c.byCategory[cat.ID]; dup {
			continue
		}
		cat = cloneCategory(cat)
		c.byCategory[cat.ID] = len(c.categories)
		c.categories = append(c.categories, cat)
		for _, opt := range cat.Options {
			if _, dup := c.prompts[opt.ID]; !dup {
				c.prompts[opt.ID] = opt.Prompt
			}
		}
	}
	return c
}

// Welcome returns the greeting body text.
func (c *Catalog) Welcome() string {
	return c.welcome
}

// Categories returns a copy of the ordered categories.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = cloneCategory(cat)
	}
	return out
}

// Category looks up a category by id.
func (c *Catalog) Category(id string) (Category, bool) {
	idx, ok := c.byCategory[id]
	if !ok {
		return Category{}, false
	}
	return cloneCategory(c.categories[idx]), true
}

func cloneCategory(cat Category) Category {
	opts := make([]Option, len(cat.Options))
	copy(opts, cat.Options)
	cat.Options = opts
	return cat
}

// Prompt resolves an option id to its canonical generation prompt.
func (c *Catalog) Prompt(optionID string) (string, bool) {
	prompt, ok := c.prompts[optionID]
	if !ok || prompt == "" {
		return "", false
	}
	return prompt, true
}

// Default returns the Good Choice Archive habit menu.
func Default() *Catalog {
	return NewCatalog(
		"👋 Welcome to *The Good Choice Archive*\n"+
			"India’s first museum of better habits ✨\n\n"+
			"What kind of good choice are you making today?",
		[]Category{
			{
				ID:    "CAT_SELFCARE",
				Title: "🧘 Self-Care",
				Body:  "💛 *Self-Care* — choose one habit 👇",
				Options: []Option{
					{ID: "OPT_WATER", Title: "💧 Drink Water", Description: "Drink a full glass of water", Prompt: "Drinking a full glass of water"},
					{ID: "OPT_NO_SCREEN", Title: "📵 No Screens", Description: "Avoid screens before sleeping", Prompt: "Avoiding screens before sleep"},
					{ID: "OPT_JOURNAL", Title: "✍️ Journal", Description: "Write one journal line", Prompt: "Writing in a journal"},
					{ID: "OPT_HOBBY", Title: "🎨 Hobby Time", Description: "Spend 5 minutes on a hobby", Prompt: "Doing a creative hobby"},
				},
			},
			{
				ID:    "CAT_FITNESS",
				Title: "🏃 Fitness",
				Body:  "🏃 *Fitness* — pick one habit 👇",
				Options: []Option{
					{ID: "OPT_WALK", Title: "🚶 Walk", Description: "10-minute walk", Prompt: "Walking for fitness"},
					{ID: "OPT_STRETCH", Title: "🤸 Stretch", Description: "Stretching exercise", Prompt: "Stretching exercise"},
					{ID: "OPT_PUSHUPS", Title: "💪 Push-ups", Description: "10 push-ups", Prompt: "Doing push-ups"},
				},
			},
			{
				ID:    "CAT_MINDFUL",
				Title: "🧠 Mindfulness",
				Body:  "🧠 *Mindfulness* — choose one 👇",
				Options: []Option{
					{ID: "OPT_BREATH", Title: "🌬️ Breathing", Description: "2 minutes deep breathing", Prompt: "Practicing deep breathing"},
					{ID: "OPT_GRAT", Title: "🙏 Gratitude", Description: "Think of one grateful moment", Prompt: "Feeling gratitude"},
				},
			},
			{
				ID:    "CAT_PRODUCT",
				Title: "🚀 Productivity",
				Body:  "🚀 *Productivity* — choose one 👇",
				Options: []Option{
					{ID: "OPT_TODO", Title: "📝 To-Do", Description: "Write today’s top task", Prompt: "Planning tasks"},
					{ID: "OPT_FOCUS", Title: "⏱️ Focus", Description: "10 minutes focused work", Prompt: "Focused work session"},
				},
			},
			{
				ID:    "CAT_NUTRITION",
				Title: "🥗 Nutrition",
				Body:  "🥗 *Nutrition* — choose one 👇",
				Options: []Option{
					{ID: "OPT_FRUIT", Title: "🍎 Fruit", Description: "Eat one fruit", Prompt: "Eating a fruit"},
					{ID: "OPT_WATER2", Title: "💧 Hydration", Description: "Drink extra water", Prompt: "Staying hydrated"},
				},
			},
		},
	)
}
