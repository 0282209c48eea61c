package action

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	ScraperModeSimulated = "simulated"
	ScraperModeHTTP      = "http"

	defaultMaxFragments = 50
	maxScrapeBodyBytes  = 5 << 20
)

// mockNews 模拟模式下新闻类站点返回的固定头条
var mockNews = []string{
	"Gemini 1.5 Pro establishes new benchmark in long-context understanding.",
	"SpaceX successfully catches Super Heavy booster.",
	"New battery tech promises 1000 mile range for EVs.",
	"Global markets rally as inflation cools down.",
	"Python 3.13 introduces JIT compiler improvements.",
}

// ScraperParams are the params of a web_scraper node.
type ScraperParams struct {
	URL          string  `json:"url"`
	Selector     string  `json:"selector"`
	MaxFragments FlexInt `json:"max_fragments"`
}

// ScraperConfig configures the web_scraper handler.
type ScraperConfig struct {
	Mode         string
	MaxFragments int
}

// WebScraper fetches text fragments from a URL.
type WebScraper struct {
	cfg      ScraperConfig
	outbound *Outbound
	logger   *zap.Logger
}

func NewWebScraper(cfg ScraperConfig, outbound *Outbound, logger *zap.Logger) *WebScraper {
	if cfg.Mode == "" {
		cfg.Mode = ScraperModeSimulated
	}
	if cfg.MaxFragments <= 0 {
		cfg.MaxFragments = defaultMaxFragments
	}
	if outbound == nil {
		outbound = NewOutbound(nil, 0, 0, "")
	}
	return &WebScraper{cfg: cfg, outbound: outbound, logger: logger}
}

func (s *WebScraper) Kind() Kind { return KindWebScraper }

func (s *WebScraper) Handle(ctx context.Context, params map[string]any, _ any) (any, error) {
	var p ScraperParams
	if err := DecodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("web_scraper: %w", err)
	}
	return s.Run(ctx, p)
}

func (s *WebScraper) Run(ctx context.Context, p ScraperParams) ([]string, error) {
	if s.cfg.Mode == ScraperModeHTTP {
		return s.fetch(ctx, p)
	}
	return simulateScrape(p.URL)
}

func simulateScrape(rawURL string) ([]string, error) {
	if strings.Contains(rawURL, "fail") {
		return nil, fmt.Errorf("Failed to reach %s (Simulated 404)", rawURL)
	}
	if strings.Contains(rawURL, "news") || strings.Contains(rawURL, "ycombinator") || strings.Contains(rawURL, "techcrunch") {
		return append([]string(nil), mockNews...), nil
	}
	return []string{
		"Scraped content from " + rawURL,
		"Sample Paragraph 1",
		"Sample Paragraph 2",
	}, nil
}

func (s *WebScraper) fetch(ctx context.Context, p ScraperParams) ([]string, error) {
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("Failed to reach %s (invalid URL)", p.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to reach %s: %w", p.URL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.outbound.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Failed to reach %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("Failed to reach %s (status %d)", p.URL, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxScrapeBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.URL, err)
	}

	limit := s.cfg.MaxFragments
	if p.MaxFragments > 0 && int(p.MaxFragments) < limit {
		limit = int(p.MaxFragments)
	}
	fragments := extractFragments(doc, parseSelector(p.Selector), limit)

	s.logger.Debug("scraped page",
		zap.String("url", p.URL),
		zap.Int("fragments", len(fragments)))
	return fragments, nil
}

// simpleSelector 支持 tag、.class、#id 以及 tag.class / tag#id 组合
type simpleSelector struct {
	tag   string
	class string
	id    string
}

var defaultTags = map[string]bool{"h1": true, "h2": true, "h3": true, "p": true, "li": true}

func parseSelector(sel string) *simpleSelector {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil
	}
	// 只取最后一段（后代选择器按最内层元素匹配）
	if fields := strings.Fields(sel); len(fields) > 1 {
		sel = fields[len(fields)-1]
	}

	out := &simpleSelector{}
	switch {
	case strings.Contains(sel, "#"):
		parts := strings.SplitN(sel, "#", 2)
		out.tag, out.id = parts[0], parts[1]
	case strings.Contains(sel, "."):
		parts := strings.SplitN(sel, ".", 2)
		out.tag, out.class = parts[0], parts[1]
	default:
		out.tag = sel
	}
	out.tag = strings.ToLower(out.tag)
	return out
}

func (s *simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s == nil {
		return defaultTags[n.Data]
	}
	if s.tag != "" && s.tag != n.Data {
		return false
	}
	if s.id != "" && attr(n, "id") != s.id {
		return false
	}
	if s.class != "" {
		found := false
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func extractFragments(root *html.Node, sel *simpleSelector, limit int) []string {
	fragments := make([]string, 0)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(fragments) >= limit {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if sel.matches(n) {
			if text := nodeText(n); text != "" {
				fragments = append(fragments, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return fragments
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
