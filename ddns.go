package ddns

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-logr/logr"
)

// DefaultDiscoveryURL answers with a JSON object whose "query" field holds the caller's public address.
const DefaultDiscoveryURL = "http://ip-api.com/json/"

// DefaultInterval is how often the record is checked.
const DefaultInterval = 5 * time.Second

func defaultResolver() Resolver {
	u, _ := url.Parse(DefaultDiscoveryURL)
	return &webResolver{serviceURLs: []*url.URL{u}, parse: parseJSONField("query")}
}

// New constructs a Reconciler for the record subdomain.domain.
// Use "@" as subdomain for the apex.
//
// A provider option such as UsingDNSPod is required.
// By default the address is discovered from DefaultDiscoveryURL,
// checked every DefaultInterval and retried with DefaultRetryPolicy.
func New(domain, subdomain string, options ...Option) (*Reconciler, error) {
	if domain == "" {
		return nil, fmt.Errorf("ddns.New: domain cannot be empty")
	}
	if subdomain == "" {
		return nil, fmt.Errorf("ddns.New: subdomain cannot be empty; use \"@\" for the apex")
	}
	r := &Reconciler{
		Resolver:  defaultResolver(),
		domain:    domain,
		subdomain: subdomain,
		interval:  DefaultInterval,
		retry:     DefaultRetryPolicy,
		logger:    logr.Discard(),
		now:       time.Now,
	}
	var s settings
	for i, opt := range options {
		if err := opt(r, &s); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if r.Provider == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered and there is no default option - use ddns.UsingDNSPod or similar")
	}

	// dependencies registered by any option receive the settings, regardless of option order
	s.apply(r)
	return r, nil
}

// Option configures a Reconciler in New.
type Option func(*Reconciler, *settings) error

// settings are propagated to the provider and resolver once all options have run.
type settings struct {
	httpClient *http.Client
	timeout    time.Duration
}

func (s settings) apply(r *Reconciler) {
	type setLogger interface {
		SetLogger(logr.Logger)
	}
	type setHTTPClient interface {
		SetHTTPClient(*http.Client)
	}
	type setTimeout interface {
		SetTimeout(time.Duration)
	}
	for _, dep := range []any{r.Provider, r.Resolver} {
		if l, ok := dep.(setLogger); ok {
			l.SetLogger(r.logger)
		}
		if hc, ok := dep.(setHTTPClient); ok && s.httpClient != nil {
			hc.SetHTTPClient(s.httpClient)
		}
		if t, ok := dep.(setTimeout); ok && s.timeout > 0 {
			t.SetTimeout(s.timeout)
		}
	}
}

// UsingDNSPod manages the record through the Tencent Cloud DNSPod API.
func UsingDNSPod(secretID, secretKey string) Option {
	return func(r *Reconciler, _ *settings) error {
		p, err := NewDNSPod(secretID, secretKey)
		if err != nil {
			return fmt.Errorf("ddns.UsingDNSPod: error creating DNSPod provider: %w", err)
		}
		r.Provider = p
		return nil
	}
}

// UsingCloudflare manages the record through the Cloudflare API.
func UsingCloudflare(token string) Option {
	return func(r *Reconciler, _ *settings) (err error) {
		if r.Provider, err = newCloudflareProvider(token); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingProvider registers any Provider implementation.
func UsingProvider(p Provider) Option {
	return func(r *Reconciler, _ *settings) error {
		if p == nil {
			return fmt.Errorf("ddns.UsingProvider: provider cannot be nil")
		}
		r.Provider = p
		return nil
	}
}

func UsingResolver(resolver Resolver) Option {
	return func(r *Reconciler, _ *settings) error {
		if resolver == nil {
			resolver = defaultResolver()
		}
		r.Resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) Option {
	return func(r *Reconciler, _ *settings) (err error) {
		r.Resolver, err = WebResolver(serviceURL...)
		return err
	}
}

// UsingJSONResolver discovers the address from a JSON field of the service responses.
func UsingJSONResolver(field string, serviceURL ...string) Option {
	return func(r *Reconciler, _ *settings) (err error) {
		r.Resolver, err = JSONResolver(field, serviceURL...)
		return err
	}
}

// WithRecordType restricts the record listing to one type, e.g. "A" or "AAAA".
func WithRecordType(recordType string) Option {
	return func(r *Reconciler, _ *settings) error {
		r.recordType = recordType
		return nil
	}
}

// WithInterval sets the time between cycles. Intervals under one second are raised to one second.
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler, _ *settings) error {
		if d < time.Second {
			d = time.Second
		}
		r.interval = d
		return nil
	}
}

// WithRetryPolicy sets the bounded retry used for discovery, record resolution and transport failures of updates.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Reconciler, _ *settings) error {
		if p.Attempts < 1 {
			return fmt.Errorf("ddns.WithRetryPolicy: attempts must be positive; got %d", p.Attempts)
		}
		if p.Backoff < 0 {
			return fmt.Errorf("ddns.WithRetryPolicy: backoff cannot be negative; got %s", p.Backoff)
		}
		r.retry = p
		return nil
	}
}

func WithLogger(logger logr.Logger) Option {
	return func(r *Reconciler, _ *settings) error {
		r.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the http.Client used by the provider and resolver.
func UsingHTTPClient(httpclient *http.Client) Option {
	return func(_ *Reconciler, s *settings) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		s.httpClient = httpclient
		return nil
	}
}

// WithTimeout bounds each provider call. Calls that exceed it fail as transport errors.
func WithTimeout(d time.Duration) Option {
	return func(_ *Reconciler, s *settings) error {
		s.timeout = d
		return nil
	}
}
