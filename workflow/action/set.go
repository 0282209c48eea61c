package action

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/flowrunner/internal/tlsutil"
	"github.com/BaSui01/flowrunner/llm"
	"go.uber.org/zap"
)

// Config groups the per-handler settings.
type Config struct {
	Scraper   ScraperConfig
	AI        AIConfig
	Email     EmailConfig
	APICaller APICallerConfig

	OutboundRPS   float64
	OutboundBurst int
	HTTPTimeout   time.Duration
	UserAgent     string
}

// Deps are the collaborators handlers need at runtime.
type Deps struct {
	Provider   llm.Provider
	Mailer     Mailer
	HTTPClient *http.Client
	Now        func() time.Time
}

// Set is the closed registry of action handlers, one per Kind.
type Set struct {
	scheduler *Scheduler
	scraper   *WebScraper
	ai        *AIProcessor
	filter    *DataFilter
	email     *EmailSender
	api       *APICaller
	logger    *zap.Logger
}

// NewSet builds every handler from cfg and deps.
func NewSet(cfg Config, deps Deps, logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "action_set"))

	client := deps.HTTPClient
	if client == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = tlsutil.OutboundClient(timeout, tlsutil.DefaultMaxRedirects)
	}
	outbound := NewOutbound(client, cfg.OutboundRPS, cfg.OutboundBurst, cfg.UserAgent)

	return &Set{
		scheduler: NewScheduler(deps.Now, logger.With(zap.String("action", string(KindScheduler)))),
		scraper:   NewWebScraper(cfg.Scraper, outbound, logger.With(zap.String("action", string(KindWebScraper)))),
		ai:        NewAIProcessor(cfg.AI, deps.Provider, logger.With(zap.String("action", string(KindAIProcessor)))),
		filter:    NewDataFilter(logger.With(zap.String("action", string(KindDataFilter)))),
		email:     NewEmailSender(cfg.Email, deps.Mailer, deps.Now, logger.With(zap.String("action", string(KindEmailSender)))),
		api:       NewAPICaller(cfg.APICaller, outbound, logger.With(zap.String("action", string(KindAPICaller)))),
		logger:    logger,
	}
}

// Handler returns the handler for kind.
func (s *Set) Handler(kind Kind) (Handler, bool) {
	switch kind {
	case KindScheduler:
		return s.scheduler, true
	case KindWebScraper:
		return s.scraper, true
	case KindAIProcessor:
		return s.ai, true
	case KindDataFilter:
		return s.filter, true
	case KindEmailSender:
		return s.email, true
	case KindAPICaller:
		return s.api, true
	default:
		return nil, false
	}
}

// Dispatch runs the handler for actionName. It satisfies workflow.Dispatcher.
func (s *Set) Dispatch(ctx context.Context, actionName string, params map[string]any, input any) (any, error) {
	kind, ok := ParseKind(actionName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, actionName)
	}
	h, _ := s.Handler(kind)
	return h.Handle(ctx, params, input)
}
