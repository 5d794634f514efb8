package ddns

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// OpenDNS answers queries for myip.opendns.com with the address of the client.
const (
	OpenDNSServer = "resolver1.opendns.com:53"
	OpenDNSName   = "myip.opendns.com"
)

// DNSResolver constructs a resolver that asks a DNS server which address the query came from.
// qtype is dns.TypeA, dns.TypeAAAA or dns.TypeTXT; TXT answers must hold the address as their first string.
//
// Some services only answer over the matching transport,
// so ask for AAAA over a host that has IPv6 connectivity.
func DNSResolver(server, name string, qtype uint16) Resolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &dnsResolver{
		server: server,
		name:   dns.Fqdn(name),
		qtype:  qtype,
		client: &dns.Client{Net: "udp", Timeout: 5 * time.Second},
	}
}

type dnsResolver struct {
	server string
	name   string
	qtype  uint16
	client *dns.Client
}

// Resolve implements ddns.Resolver.
func (r *dnsResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(r.name, r.qtype)
	m.RecursionDesired = false

	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return netip.Addr{}, discoveryError("Resolve", fmt.Errorf("dns query to %s failed: %w", r.server, err))
	}
	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, discoveryError("Resolve", fmt.Errorf("dns query to %s returned %s", r.server, dns.RcodeToString[in.Rcode]))
	}

	for _, rr := range in.Answer {
		var s string
		switch v := rr.(type) {
		case *dns.A:
			s = v.A.String()
		case *dns.AAAA:
			s = v.AAAA.String()
		case *dns.TXT:
			if len(v.Txt) > 0 {
				s = strings.TrimSpace(v.Txt[0])
			}
		default:
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Addr{}, discoveryError("Resolve", fmt.Errorf("error parsing IP address from %s answer: %w", dns.TypeToString[rr.Header().Rrtype], err))
		}
		return addr.Unmap(), nil
	}
	return netip.Addr{}, discoveryError("Resolve", fmt.Errorf("dns query to %s for %s returned no usable answer", r.server, r.name))
}
