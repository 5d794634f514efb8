package ddns_test

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/miekg/dns"

	"github.com/Travis-Britz/dnspod-ddns"
)

// newDNSServer serves handler over UDP on a loopback port and returns its address.
func newDNSServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error listening: %s", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

// echoHandler answers myip queries the way OpenDNS does.
func echoHandler(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	q := r.Question[0]
	if q.Name != dns.Fqdn(ddns.OpenDNSName) {
		m.Rcode = dns.RcodeNameError
		w.WriteMsg(m)
		return
	}
	hdr := dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET}
	switch q.Qtype {
	case dns.TypeA:
		m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: net.ParseIP("203.0.113.7")})
	case dns.TypeAAAA:
		m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.ParseIP("2001:db8::7")})
	case dns.TypeTXT:
		m.Answer = append(m.Answer, &dns.TXT{Hdr: hdr, Txt: []string{"198.51.100.9"}})
	}
	w.WriteMsg(m)
}

func TestDNSResolver(t *testing.T) {
	addr := newDNSServer(t, echoHandler)

	tests := map[string]struct {
		qtype uint16
		want  netip.Addr
	}{
		"A":    {dns.TypeA, netip.MustParseAddr("203.0.113.7")},
		"AAAA": {dns.TypeAAAA, netip.MustParseAddr("2001:db8::7")},
		"TXT":  {dns.TypeTXT, netip.MustParseAddr("198.51.100.9")},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := ddns.DNSResolver(addr, ddns.OpenDNSName, tc.qtype).Resolve(context.Background())
			if err != nil {
				t.Fatalf("Resolve failed: %s", err)
			}
			if expected, got := tc.want, res; expected != got {
				t.Fatalf("Expected %q; got %q", expected, got)
			}
		})
	}
}

func TestDNSResolverErrors(t *testing.T) {
	addr := newDNSServer(t, echoHandler)

	// NXDOMAIN
	_, err := ddns.DNSResolver(addr, "nothing.example.com", dns.TypeA).Resolve(context.Background())
	if ddns.KindOf(err) != ddns.KindDiscovery {
		t.Fatalf("Expected a discovery error for NXDOMAIN; got %v", err)
	}

	// no answer section
	_, err = ddns.DNSResolver(addr, ddns.OpenDNSName, dns.TypeMX).Resolve(context.Background())
	if ddns.KindOf(err) != ddns.KindDiscovery {
		t.Fatalf("Expected a discovery error for an empty answer; got %v", err)
	}

	// unparsable TXT
	bad := newDNSServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Answer = append(m.Answer, &dns.TXT{
			Hdr: dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET},
			Txt: []string{"not an address"},
		})
		w.WriteMsg(m)
	})
	_, err = ddns.DNSResolver(bad, ddns.OpenDNSName, dns.TypeTXT).Resolve(context.Background())
	if ddns.KindOf(err) != ddns.KindDiscovery {
		t.Fatalf("Expected a discovery error for a bad TXT answer; got %v", err)
	}
}

func TestDNSResolverCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// nothing listens on the discard port
	_, err := ddns.DNSResolver("127.0.0.1:9", ddns.OpenDNSName, dns.TypeA).Resolve(ctx)
	if ddns.KindOf(err) != ddns.KindDiscovery {
		t.Fatalf("Expected a discovery error; got %v", err)
	}
}
