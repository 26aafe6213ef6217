// Package httpclient builds the shared, pooled HTTP client used by
// plugins, the link validator, and hoster resolvers: a cloned transport
// with optional proxy, wrapped in a Retry-After-aware retry layer and an
// otelhttp transport.
package httpclient

import (
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Options struct {
	Timeout           time.Duration
	UserAgent         string
	ProxyURL          string
	MaxIdleConns      int
	MaxIdleConnsPerHost int
	DisableRedirects  bool
}

// New builds a pooled *http.Client wrapped in an OTel transport plus a
// Retry-After-aware retry transport (see RetryTransport).
func New(opts Options) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ForceAttemptHTTP2 = true
	if opts.MaxIdleConns > 0 {
		transport.MaxIdleConns = opts.MaxIdleConns
	}
	if opts.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = opts.MaxIdleConnsPerHost
	}
	if opts.ProxyURL != "" {
		if parsed, err := url.Parse(opts.ProxyURL); err == nil && parsed.Scheme != "" && parsed.Host != "" {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}

	var rt http.RoundTripper = &RetryTransport{Base: transport}
	rt = otelhttp.NewTransport(rt)

	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
	}
	if opts.DisableRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}
