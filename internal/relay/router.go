package relay

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/goodchoice-relay/internal/menu"
	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

var relayTracer = otel.Tracer("goodchoice.internal.relay")

const (
	welcomeButton      = "Choose Category"
	welcomeSection     = "Categories"
	categoryButton     = "Choose Habit"
	categorySection    = "Habits"
	exhibitCaption     = "🖼️ Your Good Choice Exhibit"
	exhibitLinkMessage = "✨ Your exhibit is ready!\n\nA small habit.\nA meaningful moment.\n\n👉 View here:\n"
)

// Messenger is the outbound transport used by the router and pipeline.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendList(ctx context.Context, to string, list whatsapp.ListMenu) error
	SendImage(ctx context.Context, to, mediaID, caption string) error
	UploadImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Fulfiller produces and delivers the exhibit for a chosen option.
type Fulfiller interface {
	Fulfill(ctx context.Context, sender, optionID string) error
}

// RouterConfig wires a Router.
type RouterConfig struct {
	Catalog   *menu.Catalog
	Messenger Messenger
	Pipeline  Fulfiller
	// UnrecognizedHint is sent for messages that match nothing. Empty keeps
	// the conversation silent.
	UnrecognizedHint string
	Metrics          *metrics.RelayMetrics
	Logger           *logging.Logger
}

// Router maps conversation events to replies. It keeps no per-user state.
type Router struct {
	catalog   *menu.Catalog
	messenger Messenger
	pipeline  Fulfiller
	hint      string
	metrics   *metrics.RelayMetrics
	logger    *logging.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Catalog == nil {
		panic("relay: catalog cannot be nil")
	}
	if cfg.Messenger == nil {
		panic("relay: messenger cannot be nil")
	}
	if cfg.Pipeline == nil {
		panic("relay: pipeline cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{
		catalog:   cfg.Catalog,
		messenger: cfg.Messenger,
		pipeline:  cfg.Pipeline,
		hint:      cfg.UnrecognizedHint,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// Handle classifies msg and dispatches the resulting event to its sender.
func (r *Router) Handle(ctx context.Context, msg whatsapp.InboundMessage) error {
	return r.Dispatch(ctx, msg.From, Classify(msg))
}

// Dispatch performs the side effects for one event.
func (r *Router) Dispatch(ctx context.Context, sender string, ev Event) error {
	ctx, span := relayTracer.Start(ctx, "relay.dispatch", trace.WithAttributes(
		attribute.String("goodchoice.event", ev.Kind.String()),
		attribute.String("goodchoice.selection_id", ev.ID),
	))
	defer span.End()

	r.metrics.ObserveDispatch(ev.Kind.String())

	var err error
	switch ev.Kind {
	case EventGreeting:
		err = r.SendWelcome(ctx, sender)
	case EventCategorySelected:
		err = r.SendCategoryOptions(ctx, sender, ev.ID)
	case EventOptionSelected:
		err = r.pipeline.Fulfill(ctx, sender, ev.ID)
	default:
		if r.hint != "" {
			err = r.messenger.SendText(ctx, sender, r.hint)
		}
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// SendWelcome sends the category list.
func (r *Router) SendWelcome(ctx context.Context, to string) error {
	categories := r.catalog.Categories()
	rows := make([]whatsapp.ListRow, 0, len(categories))
	for _, cat := range categories {
		rows = append(rows, whatsapp.ListRow{ID: cat.ID, Title: cat.Title})
	}
	return r.messenger.SendList(ctx, to, whatsapp.ListMenu{
		Body:         r.catalog.Welcome(),
		Button:       welcomeButton,
		SectionTitle: welcomeSection,
		Rows:         rows,
	})
}

// SendCategoryOptions sends the options of one category. Unknown ids are
// logged and nothing is sent.
func (r *Router) SendCategoryOptions(ctx context.Context, to, categoryID string) error {
	cat, ok := r.catalog.Category(categoryID)
	if !ok {
		r.logger.Warn("unknown category selected", "category_id", categoryID, "to", to)
		return nil
	}
	rows := make([]whatsapp.ListRow, 0, len(cat.Options))
	for _, opt := range cat.Options {
		rows = append(rows, whatsapp.ListRow{ID: opt.ID, Title: opt.Title, Description: opt.Description})
	}
	return r.messenger.SendList(ctx, to, whatsapp.ListMenu{
		Body:         cat.Body,
		Button:       categoryButton,
		SectionTitle: categorySection,
		Rows:         rows,
	})
}
