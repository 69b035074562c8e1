package ddns

import (
	"context"
)

// Resolver discovers the address that should be published for the domain.
type Resolver interface {
	Resolve(context.Context) (string, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(context.Context) (string, error)

// Resolve implements ddns.Resolver.
func (f ResolverFunc) Resolve(ctx context.Context) (string, error) {
	return f(ctx)
}

// Provider reads and writes the authoritative DNS record.
type Provider interface {
	// Lookup returns the first record named domain.
	Lookup(ctx context.Context, domain string) (Record, error)
	// Update points the record identified by id at ip.
	Update(ctx context.Context, id string, domain string, ip string) error
}

// Record is the provider's view of the A record for the managed domain.
type Record struct {
	ID string // assigned by the provider; never changes
	IP string // content of the record as last observed or written
}

// WithIP returns a copy of r pointing at ip.
func (r Record) WithIP(ip string) Record {
	return Record{ID: r.ID, IP: ip}
}
