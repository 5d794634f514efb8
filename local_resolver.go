package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns an address assigned to the given interfaces.
// If no interfaces are provided then all interfaces will be used.
// Loopback and link-local addresses are skipped, and public addresses are preferred over private ones.
//
// recordType limits the result to "A" (IPv4) or "AAAA" (IPv6); empty accepts either.
// This suits hosts that hold a globally routed IPv6 address directly on an interface.
func InterfaceResolver(recordType string, iface ...string) Resolver {
	return interfaceResolver{recordType: recordType, ifaces: iface}
}

type interfaceResolver struct {
	recordType string
	ifaces     []string
}

// Resolve implements ddns.Resolver.
func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	addrs, err := r.addrs()
	if err != nil && len(addrs) == 0 {
		return netip.Addr{}, discoveryError("Resolve", err)
	}

	var fallback netip.Addr
	for _, a := range addrs {
		if a.IsLoopback() || a.IsLinkLocalUnicast() || !a.IsGlobalUnicast() {
			continue
		}
		if r.recordType != "" && recordType(a) != r.recordType {
			continue
		}
		if a.IsPrivate() {
			if !fallback.IsValid() {
				fallback = a
			}
			continue
		}
		return a, nil
	}
	if fallback.IsValid() {
		return fallback, nil
	}
	return netip.Addr{}, discoveryError("Resolve", errors.Join(fmt.Errorf("no usable %s address found on interfaces %v", r.family(), r.ifaces), err))
}

func (r interfaceResolver) family() string {
	switch r.recordType {
	case "A":
		return "IPv4"
	case "AAAA":
		return "IPv6"
	}
	return "IP"
}

func (r interfaceResolver) addrs() (addrs []netip.Addr, err error) {
	var raw []net.Addr
	var errs []error
	if len(r.ifaces) == 0 {
		raw, err = net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting addresses for interface: %w", err)
		}
	}
	for _, ifs := range r.ifaces {
		iface, err := net.InterfaceByName(ifs)
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", ifs, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", ifs, err))
			continue
		}
		raw = append(raw, a...)
	}
	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fd64:9f44:fc30:0:b951:8b16:2812:a227/64
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	for _, addr := range raw {
		ip, err := netip.ParsePrefix(addr.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing local ip %s: %s", addr.String(), err))
			continue
		}
		addrs = append(addrs, ip.Addr().Unmap())
	}
	return addrs, errors.Join(errs...)
}
