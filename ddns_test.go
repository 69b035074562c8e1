package ddns_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Travis-Britz/ddns/v2"
	"github.com/go-logr/logr/testr"
)

// fakeProvider is an in-memory ddns.Provider that counts calls.
type fakeProvider struct {
	mu        sync.Mutex
	record    ddns.Record
	lookupErr error
	updateErr error
	lookups   int
	updates   []string
}

func (p *fakeProvider) Lookup(_ context.Context, domain string) (ddns.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups++
	if p.lookupErr != nil {
		return ddns.Record{}, p.lookupErr
	}
	return p.record, nil
}

func (p *fakeProvider) Update(_ context.Context, id, domain, ip string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, id+"="+ip)
	if p.updateErr != nil {
		return p.updateErr
	}
	p.record.IP = ip
	return nil
}

func staticIP(ip string) ddns.Resolver {
	return ddns.ResolverFunc(func(context.Context) (string, error) { return ip, nil })
}

func failingResolver(err error) ddns.Resolver {
	return ddns.ResolverFunc(func(context.Context) (string, error) { return "", err })
}

func newClient(t *testing.T, p ddns.Provider, r ddns.Resolver) *ddns.Client {
	t.Helper()
	c, err := ddns.New("home.example.com",
		ddns.UsingProvider(p),
		ddns.UsingResolver(r),
		ddns.WithLogger(testr.New(t)),
	)
	if err != nil {
		t.Fatalf("error creating ddns client: %s", err)
	}
	return c
}

func TestNewRequiresDomainAndProvider(t *testing.T) {
	if _, err := ddns.New("", ddns.UsingProvider(&fakeProvider{})); err == nil {
		t.Fatalf("Expected error for empty domain; got err == nil")
	}
	if _, err := ddns.New("home.example.com"); err == nil {
		t.Fatalf("Expected error for missing provider; got err == nil")
	}
	if _, err := ddns.New("home.example.com", ddns.UsingCloudflare("", "zone")); err == nil {
		t.Fatalf("Expected error for missing token; got err == nil")
	}
	if _, err := ddns.New("home.example.com", ddns.UsingCloudflare("token", "")); err == nil {
		t.Fatalf("Expected error for missing zone; got err == nil")
	}
}

func TestReconcileLookupThenNoUpdate(t *testing.T) {
	p := &fakeProvider{record: ddns.Record{ID: "abc", IP: "1.2.3.4"}}
	c := newClient(t, p, staticIP("1.2.3.4"))

	rec, err := c.Reconcile(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reconcile failed: %s", err)
	}
	if rec == nil || *rec != (ddns.Record{ID: "abc", IP: "1.2.3.4"}) {
		t.Fatalf("Expected cache {abc 1.2.3.4}; got %+v", rec)
	}
	if p.lookups != 1 {
		t.Fatalf("Expected 1 lookup; got %d", p.lookups)
	}
	if len(p.updates) != 0 {
		t.Fatalf("Expected no updates; got %v", p.updates)
	}
}

func TestReconcileCachedDrift(t *testing.T) {
	p := &fakeProvider{record: ddns.Record{ID: "abc", IP: "1.2.3.4"}}
	c := newClient(t, p, staticIP("5.6.7.8"))

	rec, err := c.Reconcile(context.Background(), &ddns.Record{ID: "abc", IP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("Reconcile failed: %s", err)
	}
	if p.lookups != 0 {
		t.Fatalf("Expected cached record to skip lookup; got %d lookups", p.lookups)
	}
	if len(p.updates) != 1 || p.updates[0] != "abc=5.6.7.8" {
		t.Fatalf("Expected one update abc=5.6.7.8; got %v", p.updates)
	}
	if rec == nil || *rec != (ddns.Record{ID: "abc", IP: "5.6.7.8"}) {
		t.Fatalf("Expected cache {abc 5.6.7.8}; got %+v", rec)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	p := &fakeProvider{record: ddns.Record{ID: "abc", IP: "1.2.3.4"}}
	c := newClient(t, p, staticIP("1.2.3.4"))

	cached := &ddns.Record{ID: "abc", IP: "1.2.3.4"}
	for i := 0; i < 3; i++ {
		next, err := c.Reconcile(context.Background(), cached)
		if err != nil {
			t.Fatalf("Reconcile failed: %s", err)
		}
		if next != cached {
			t.Fatalf("Expected the cached record to be returned unchanged; got %+v", next)
		}
	}
	if len(p.updates) != 0 {
		t.Fatalf("Expected no updates; got %v", p.updates)
	}
	if p.lookups != 0 {
		t.Fatalf("Expected no lookups; got %d", p.lookups)
	}
}

func TestReconcileDiscoveryFailureClearsCache(t *testing.T) {
	p := &fakeProvider{record: ddns.Record{ID: "abc", IP: "1.2.3.4"}}
	c := newClient(t, p, failingResolver(errors.New("connection refused")))

	rec, err := c.Reconcile(context.Background(), &ddns.Record{ID: "abc", IP: "1.2.3.4"})
	var de *ddns.DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DiscoveryError; got %v", err)
	}
	if rec != nil {
		t.Fatalf("Expected cache to be cleared; got %+v", rec)
	}
	if len(p.updates) != 0 {
		t.Fatalf("Expected no updates; got %v", p.updates)
	}
}

func TestReconcileLookupFailure(t *testing.T) {
	p := &fakeProvider{lookupErr: errors.New("timeout")}
	called := false
	r := ddns.ResolverFunc(func(context.Context) (string, error) {
		called = true
		return "1.2.3.4", nil
	})
	c := newClient(t, p, r)

	rec, err := c.Reconcile(context.Background(), nil)
	var le *ddns.LookupError
	if !errors.As(err, &le) {
		t.Fatalf("Expected *LookupError; got %v", err)
	}
	if rec != nil {
		t.Fatalf("Expected cache to stay empty; got %+v", rec)
	}
	if called {
		t.Fatalf("Expected discovery to be skipped after a failed lookup")
	}
}

func TestReconcileUpdateFailureClearsCache(t *testing.T) {
	p := &fakeProvider{record: ddns.Record{ID: "abc", IP: "1.2.3.4"}, updateErr: errors.New("503")}
	c := newClient(t, p, staticIP("5.6.7.8"))

	rec, err := c.Reconcile(context.Background(), &ddns.Record{ID: "abc", IP: "1.2.3.4"})
	var ue *ddns.UpdateError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected *UpdateError; got %v", err)
	}
	if rec != nil {
		t.Fatalf("Expected cache to be cleared; got %+v", rec)
	}

	// the next cycle has to start over with a lookup
	p.updateErr = nil
	rec, err = c.Reconcile(context.Background(), rec)
	if err != nil {
		t.Fatalf("Reconcile failed: %s", err)
	}
	if p.lookups != 1 {
		t.Fatalf("Expected 1 lookup after failure; got %d", p.lookups)
	}
	if rec == nil || rec.IP != "5.6.7.8" {
		t.Fatalf("Expected cache {abc 5.6.7.8}; got %+v", rec)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	p := &fakeProvider{record: ddns.Record{ID: "abc", IP: "1.2.3.4"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := 0
	r := ddns.ResolverFunc(func(context.Context) (string, error) {
		cycles++
		cancel()
		return "5.6.7.8", nil
	})
	c := newClient(t, p, r)

	done := make(chan error)
	go func() { done <- c.Run(ctx, time.Millisecond) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled; got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after its context was canceled")
	}
	if cycles != 1 {
		t.Fatalf("Expected exactly one cycle; got %d", cycles)
	}
	if len(p.updates) != 1 {
		t.Fatalf("Expected one update; got %v", p.updates)
	}
}
