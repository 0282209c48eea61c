package action

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"dario.cat/mergo"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const maxAPIBodyBytes = 2 << 20

// APICallerParams are the params of an api_caller node.
type APICallerParams struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

// APICallerConfig configures the api_caller handler.
type APICallerConfig struct {
	AllowLocal     bool
	DefaultHeaders map[string]string
}

// APICaller performs an HTTP request and returns the decoded JSON body.
// Any failure yields the simulated fallback response instead of an error.
type APICaller struct {
	cfg      APICallerConfig
	outbound *Outbound
	logger   *zap.Logger
}

func NewAPICaller(cfg APICallerConfig, outbound *Outbound, logger *zap.Logger) *APICaller {
	if outbound == nil {
		outbound = NewOutbound(nil, 0, 0, "")
	}
	return &APICaller{cfg: cfg, outbound: outbound, logger: logger}
}

// FallbackResponse is returned whenever the real call cannot be made or parsed.
func FallbackResponse() map[string]any {
	return map[string]any{"status": 200, "data": "Simulated API Response"}
}

func (a *APICaller) Kind() Kind { return KindAPICaller }

func (a *APICaller) Handle(ctx context.Context, params map[string]any, _ any) (any, error) {
	var p APICallerParams
	if err := DecodeParams(params, &p); err != nil {
		a.logger.Warn("api_caller params invalid, using fallback", zap.Error(err))
		return FallbackResponse(), nil
	}
	return a.Run(ctx, p), nil
}

func (a *APICaller) Run(ctx context.Context, p APICallerParams) any {
	out, err := a.call(ctx, p)
	if err != nil {
		a.logger.Debug("api_caller fell back to simulated response",
			zap.String("url", p.URL),
			zap.Error(err))
		return FallbackResponse()
	}
	return out
}

type fallbackReason string

func (r fallbackReason) Error() string { return string(r) }

func (a *APICaller) call(ctx context.Context, p APICallerParams) (any, error) {
	u, err := url.Parse(strings.TrimSpace(p.URL))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fallbackReason("unsupported scheme")
	}
	if !a.cfg.AllowLocal && isLocalTarget(u) {
		return nil, fallbackReason("local targets are not allowed")
	}

	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if p.Body != nil && method != http.MethodGet && method != http.MethodHead {
		switch b := p.Body.(type) {
		case string:
			body = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				return nil, err
			}
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(p.Headers)+len(a.cfg.DefaultHeaders))
	for k, v := range p.Headers {
		headers[k] = v
	}
	// 节点 headers 优先，默认 headers 只补缺失项
	if len(a.cfg.DefaultHeaders) > 0 {
		if err := mergo.Merge(&headers, a.cfg.DefaultHeaders); err != nil {
			return nil, err
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.outbound.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBodyBytes))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
