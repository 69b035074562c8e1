package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

const (
	// DefaultInterval is the pause between cycles used by Run when no interval is given.
	DefaultInterval = 5 * time.Minute
	// MinInterval is the shortest pause Run will accept.
	MinInterval = 1 * time.Minute
)

// New creates a client that keeps the A record for domain pointed at the discovered public IP.
//
// A provider option such as UsingCloudflare is required.
// Without UsingResolver or UsingRouter the client asks the gateway at DefaultRouterURL.
func New(domain string, options ...ClientOption) (*Client, error) {
	if domain == "" {
		return nil, fmt.Errorf("ddns.New: domain cannot be empty")
	}
	c := &Client{
		domain:      domain,
		logger:      logr.Discard(),
		now:         time.Now,
		minInterval: MinInterval,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if c.provider == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered and there is no default option - use ddns.UsingCloudflare or similar")
	}
	if c.resolver == nil {
		c.resolver = UPnPResolver("")
	}

	// options may arrive in any order, so settings that apply to dependencies are pushed down last
	c.propagate()
	return c, nil
}

// ClientOption configures a Client in New.
type ClientOption func(*Client) error

// UsingCloudflare manages the record through the Cloudflare API using an API token scoped to zoneID.
func UsingCloudflare(token, zoneID string) ClientOption {
	return func(c *Client) (err error) {
		if c.provider, err = newCloudflareProvider(token, zoneID); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingProvider registers a custom DNS provider.
func UsingProvider(provider Provider) ClientOption {
	return func(c *Client) error {
		if provider == nil {
			return errors.New("ddns.UsingProvider: provider cannot be nil")
		}
		c.provider = provider
		return nil
	}
}

// UsingResolver registers the source of the public IP.
// A nil resolver selects the UPnP resolver at DefaultRouterURL.
func UsingResolver(resolver Resolver) ClientOption {
	return func(c *Client) error {
		if resolver == nil {
			resolver = UPnPResolver("")
		}
		c.resolver = resolver
		return nil
	}
}

// UsingRouter discovers the public IP by asking the UPnP gateway at controlURL.
func UsingRouter(controlURL string) ClientOption {
	return func(c *Client) error {
		c.resolver = UPnPResolver(controlURL)
		return nil
	}
}

// UsingHTTPClient sets the client used for every outgoing request.
// Without it, router requests use a new zero-value http.Client and Cloudflare requests use http.DefaultClient.
func UsingHTTPClient(httpclient *http.Client) ClientOption {
	return func(c *Client) error {
		c.httpClient = httpclient
		return nil
	}
}

// WithAPIBaseURL overrides DefaultAPIBaseURL for the Cloudflare provider.
func WithAPIBaseURL(baseURL string) ClientOption {
	return func(c *Client) error {
		c.apiBaseURL = baseURL
		return nil
	}
}

// WithLogger sets the logger used by the client and its dependencies.
func WithLogger(logger logr.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics records the outcome of every cycle into m.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

func (c *Client) propagate() {
	type setLogger interface {
		SetLogger(logr.Logger)
	}
	type setHTTPClient interface {
		SetHTTPClient(*http.Client)
	}

	if cf, ok := c.provider.(*cloudflareProvider); ok && c.apiBaseURL != "" {
		cf.baseURL = c.apiBaseURL
	}
	for _, dep := range []any{c.provider, c.resolver} {
		if l, ok := dep.(setLogger); ok {
			l.SetLogger(c.logger)
		}
		if hc, ok := dep.(setHTTPClient); ok && c.httpClient != nil {
			hc.SetHTTPClient(c.httpClient)
		}
	}
}

// Client reconciles one DNS record with the discovered public IP.
type Client struct {
	resolver   Resolver
	provider   Provider
	metrics    *Metrics
	logger     logr.Logger
	httpClient *http.Client
	apiBaseURL string
	domain     string
	now        func() time.Time

	minInterval time.Duration
}

// Domain returns the name of the managed record.
func (c *Client) Domain() string { return c.domain }

// Verify asks the provider to confirm its credentials, if it supports doing so.
func (c *Client) Verify(ctx context.Context) error {
	type verifier interface {
		Verify(ctx context.Context, domain string) error
	}
	v, ok := c.provider.(verifier)
	if !ok {
		return nil
	}
	return v.Verify(ctx, c.domain)
}

// Reconcile runs a single cycle.
//
// cached is the record from the previous successful cycle, or nil if it must be looked up.
// On success the returned record reflects what the provider now holds.
// On any error the returned record is nil so that the next cycle starts with a fresh lookup.
// The error is always a *LookupError, *DiscoveryError or *UpdateError.
func (c *Client) Reconcile(ctx context.Context, cached *Record) (*Record, error) {
	rec, _, err := c.reconcile(ctx, cached)
	return rec, err
}

func (c *Client) reconcile(ctx context.Context, cached *Record) (*Record, string, error) {
	if cached == nil {
		c.metrics.observeLookup()
		rec, err := c.provider.Lookup(ctx, c.domain)
		if err != nil {
			var le *LookupError
			if !errors.As(err, &le) {
				err = &LookupError{Domain: c.domain, Err: err}
			}
			return nil, resultLookupError, err
		}
		cached = &rec
	}

	ip, err := c.resolver.Resolve(ctx)
	if err != nil {
		var de *DiscoveryError
		if !errors.As(err, &de) {
			err = &DiscoveryError{Err: err}
		}
		return nil, resultDiscoveryError, err
	}

	if ip == cached.IP {
		c.logger.Info("not updating", "domain", c.domain, "ip", ip)
		return cached, resultUnchanged, nil
	}

	if err := c.provider.Update(ctx, cached.ID, c.domain, ip); err != nil {
		var ue *UpdateError
		if !errors.As(err, &ue) {
			err = &UpdateError{Domain: c.domain, ID: cached.ID, Err: err}
		}
		return nil, resultUpdateError, err
	}
	c.metrics.observeUpdate()
	updated := cached.WithIP(ip)
	c.logger.Info("updated DNS record", "domain", c.domain, "id", updated.ID, "old", cached.IP, "new", ip)
	return &updated, resultUpdated, nil
}

// Run reconciles forever, pausing interval between cycles.
//
// Cycles never overlap. A failed cycle is logged and discards the cached record;
// the next cycle is the retry. Run returns only when ctx is done.
//
// An interval of zero selects DefaultInterval; anything shorter than MinInterval is raised to it.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < c.minInterval {
		interval = c.minInterval
	}

	var cached *Record
	for {
		cached = c.cycle(ctx, cached)

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// RunOnce runs a single cycle starting from an empty cache.
func (c *Client) RunOnce(ctx context.Context) error {
	_, result, err := c.reconcile(ctx, nil)
	c.record(result)
	return err
}

func (c *Client) cycle(ctx context.Context, cached *Record) *Record {
	next, result, err := c.reconcile(ctx, cached)
	if err != nil {
		c.logger.Error(err, "ddns cycle failed", "domain", c.domain)
	}
	c.record(result)
	return next
}

func (c *Client) record(result string) {
	c.metrics.observeCycle(result, c.now())
	if err := c.metrics.write(); err != nil {
		c.logger.Error(err, "unable to write metrics")
	}
}
