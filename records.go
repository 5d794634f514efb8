package ddns

import (
	"fmt"
	"net/netip"
	"strings"
)

// FindBySubdomain returns the first record whose Name equals subdomain and whose Type is recordType.
// An empty recordType accepts either address type, A or AAAA. Records of other types are never returned.
// The provider's list order decides which record wins when several match.
func FindBySubdomain(records []Record, subdomain, recordType string) (Record, error) {
	if matches := addressRecords(records, subdomain, recordType); len(matches) > 0 {
		return matches[0], nil
	}
	return Record{}, recordNotFound(subdomain, recordType, len(records))
}

// addressRecords returns the A and AAAA records named subdomain, keeping list order.
func addressRecords(records []Record, subdomain, recordType string) []Record {
	var out []Record
	for _, r := range records {
		if r.Name == subdomain && isAddressType(r.Type) && (recordType == "" || strings.EqualFold(r.Type, recordType)) {
			out = append(out, r)
		}
	}
	return out
}

func isAddressType(t string) bool {
	return strings.EqualFold(t, "A") || strings.EqualFold(t, "AAAA")
}

func recordNotFound(subdomain, recordType string, n int) error {
	want := recordType
	if want == "" {
		want = "A or AAAA"
	}
	return &Error{
		Kind: KindRecordNotFound,
		Op:   "FindBySubdomain",
		Err:  fmt.Errorf("no %s record named %q among %d records; create it at the provider first", want, subdomain, n),
	}
}

// sameAddress compares a discovered address with a record value.
// Values that parse as IPs are compared as addresses so that equivalent IPv6 spellings are equal.
func sameAddress(addr netip.Addr, value string) bool {
	if v, err := netip.ParseAddr(value); err == nil {
		return v.Unmap() == addr.Unmap()
	}
	return addr.String() == value
}

func recordType(a netip.Addr) string {
	if a.Is4() || a.Is4In6() {
		return "A"
	}
	return "AAAA"
}
