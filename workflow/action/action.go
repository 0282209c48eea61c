package action

import (
	"context"
	"errors"
)

// ErrUnknownAction is returned when a node names an action outside the
// closed set of kinds.
var ErrUnknownAction = errors.New("unknown action")

// Kind is one of the six supported action kinds.
type Kind string

const (
	KindWebScraper  Kind = "web_scraper"
	KindAIProcessor Kind = "ai_processor"
	KindEmailSender Kind = "email_sender"
	KindDataFilter  Kind = "data_filter"
	KindScheduler   Kind = "scheduler"
	KindAPICaller   Kind = "api_caller"
)

// Kinds lists every action kind in catalog order.
func Kinds() []Kind {
	return []Kind{
		KindWebScraper,
		KindAIProcessor,
		KindEmailSender,
		KindDataFilter,
		KindScheduler,
		KindAPICaller,
	}
}

// ParseKind converts an action name into a Kind.
func ParseKind(name string) (Kind, bool) {
	switch k := Kind(name); k {
	case KindWebScraper, KindAIProcessor, KindEmailSender, KindDataFilter, KindScheduler, KindAPICaller:
		return k, true
	default:
		return "", false
	}
}

// IsKnown reports whether name is a supported action kind.
func IsKnown(name string) bool {
	_, ok := ParseKind(name)
	return ok
}

// Handler executes one action kind. params are the node's raw params and
// input is the resolved dependency output.
type Handler interface {
	Kind() Kind
	Handle(ctx context.Context, params map[string]any, input any) (any, error)
}
