package action

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Outbound is the HTTP client shared by web_scraper and api_caller. Every
// request waits on a common rate limiter.
type Outbound struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewOutbound creates an outbound client. rps <= 0 disables limiting.
func NewOutbound(client *http.Client, rps float64, burst int, userAgent string) *Outbound {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	if userAgent == "" {
		userAgent = "flowrunner/1.0"
	}
	return &Outbound{
		client:    client,
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: userAgent,
	}
}

// Do waits for a limiter token and sends req.
func (o *Outbound) Do(req *http.Request) (*http.Response, error) {
	if err := o.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", o.userAgent)
	}
	return o.client.Do(req)
}

// isLocalTarget reports whether u points at this machine.
func isLocalTarget(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return true
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}
