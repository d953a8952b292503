// Package fetch is the network boundary: it retrieves raw bytes for a URL
// with the configured User-Agent and optional custom trust store. Errors
// distinguish transport failures from non-2xx statuses.
package fetch

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
)

type debugLogger interface {
	Debugf(string, ...any)
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// CABundle is a PEM file replacing the system trust store.
	CABundle string
	// CloudflareBypass wraps the transport with browser-like headers for
	// sources fronted by Cloudflare.
	CloudflareBypass bool
	Transport        http.RoundTripper
	DebugLogger      debugLogger
}

// Client wraps an *http.Client configured the way every stripd fetch
// needs it. It implements Fetcher.
type Client struct {
	hc  *http.Client
	log debugLogger
}

func NewClient(opts Options) (*Client, error) {
	var base http.RoundTripper
	if opts.Transport != nil {
		base = opts.Transport
	} else {
		tr := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxConnsPerHost:     100,
			MaxIdleConnsPerHost: 100,
			ForceAttemptHTTP2:   true,
		}
		if opts.CABundle != "" {
			pem, err := os.ReadFile(opts.CABundle)
			if err != nil {
				return nil, fmt.Errorf("ca bundle: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("ca bundle %s: no certificates found", opts.CABundle)
			}
			tr.TLSClientConfig = &tls.Config{RootCAs: pool}
		}
		base = tr
	}

	if opts.CloudflareBypass {
		base = cloudflarebp.AddCloudFlareByPass(base)
	}

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: roundTripper{
			base: base,
			ua:   opts.UserAgent,
			log:  opts.DebugLogger,
		},
	}

	if opts.DebugLogger != nil {
		opts.DebugLogger.Debugf("HTTP client initialized (timeout=%s, ua=%q, cf=%t)\n",
			opts.Timeout, opts.UserAgent, opts.CloudflareBypass)
	}

	return &Client{hc: client, log: opts.DebugLogger}, nil
}

type roundTripper struct {
	base http.RoundTripper
	ua   string
	log  debugLogger
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.ua != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", rt.ua)
	}
	if rt.log != nil {
		rt.log.Debugf("HTTP %s %s\n", req.Method, req.URL.String())
	}
	return rt.base.RoundTrip(req)
}

func PickUserAgent(override string) string {
	if override != "" {
		return override
	}
	return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
}
