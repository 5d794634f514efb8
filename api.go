package ddns

import (
	"context"
	"net/netip"
)

// Resolver discovers the address that should be published.
// Implementations must perform a live lookup on every call.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) { return f(ctx) }

// Provider reads and modifies records at a DNS provider.
type Provider interface {
	// ListRecords returns the records of domain.
	// A non-empty subdomain or recordType narrows the listing at the provider;
	// callers still match names and types themselves.
	ListRecords(ctx context.Context, domain, subdomain, recordType string) ([]Record, error)
	// ModifyRecord replaces the record identified by rec.ID with rec.
	ModifyRecord(ctx context.Context, domain string, rec Record) error
}

// Record is a DNS record as reported by a Provider.
// Records are fetched fresh on every cycle and never cached.
type Record struct {
	ID    string // provider record identity
	Name  string // subdomain, "@" for the apex
	Type  string // A, AAAA
	Line  string // routing line; empty for providers without lines
	Value string
	TTL   int // 0 when unknown
}
