package ddns

import (
	"errors"
	"net/netip"
	"testing"
)

func TestFindBySubdomain(t *testing.T) {
	records := []Record{
		{ID: "1", Name: "@", Type: "NS", Value: "f1g1ns1.dnspod.net."},
		{ID: "2", Name: "@", Type: "A", Value: "1.1.1.1"},
		{ID: "3", Name: "home", Type: "TXT", Value: "v=spf1 -all"},
		{ID: "4", Name: "home", Type: "A", Value: "2.2.2.2"},
		{ID: "5", Name: "home", Type: "A", Value: "3.3.3.3"},
		{ID: "6", Name: "home", Type: "AAAA", Value: "2001:db8::1"},
		{ID: "7", Name: "mail", Type: "MX", Value: "mx.example.com."},
	}

	tests := []struct {
		subdomain  string
		recordType string
		want       string
	}{
		{"home", "", "4"},
		{"home", "A", "4"},
		{"home", "a", "4"},
		{"home", "AAAA", "6"},
		{"@", "", "2"},
	}
	for _, tc := range tests {
		r, err := FindBySubdomain(records, tc.subdomain, tc.recordType)
		if err != nil {
			t.Fatalf("FindBySubdomain(%q, %q) failed: %s", tc.subdomain, tc.recordType, err)
		}
		if r.ID != tc.want {
			t.Fatalf("FindBySubdomain(%q, %q): expected record %q; got %q", tc.subdomain, tc.recordType, tc.want, r.ID)
		}
	}

	for _, tc := range []struct{ subdomain, recordType string }{
		{"office", ""},
		{"mail", ""},
		{"mail", "MX"},
		{"@", "AAAA"},
	} {
		_, err := FindBySubdomain(records, tc.subdomain, tc.recordType)
		if !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("FindBySubdomain(%q, %q): expected ErrRecordNotFound; got %v", tc.subdomain, tc.recordType, err)
		}
		if KindOf(err).Retryable() {
			t.Fatalf("Expected record not found to be final")
		}
	}

	if _, err := FindBySubdomain(nil, "home", ""); KindOf(err) != KindRecordNotFound {
		t.Fatalf("Expected kind %s for an empty list; got %v", KindRecordNotFound, err)
	}
}

func TestSameAddress(t *testing.T) {
	tests := []struct {
		addr  string
		value string
		want  bool
	}{
		{"1.1.1.1", "1.1.1.1", true},
		{"1.1.1.1", "2.2.2.2", false},
		{"2001:db8::1", "2001:DB8:0:0:0:0:0:1", true},
		{"1.1.1.1", "::ffff:1.1.1.1", true},
		{"1.1.1.1", "", false},
		{"1.1.1.1", "not an ip", false},
	}
	for _, tc := range tests {
		if got := sameAddress(netip.MustParseAddr(tc.addr), tc.value); got != tc.want {
			t.Errorf("sameAddress(%s, %q): expected %t; got %t", tc.addr, tc.value, tc.want, got)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := error(&Error{Kind: KindTransport, Op: "DescribeRecordList", Err: inner})

	if !errors.Is(err, inner) {
		t.Fatalf("Expected the cause to unwrap")
	}
	if errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("Expected a transport error not to match ErrRecordNotFound")
	}
	if KindOf(err) != KindTransport || !KindOf(err).Retryable() {
		t.Fatalf("Expected a retryable transport error; got %s", KindOf(err))
	}
	if KindOf(inner) != KindUnknown {
		t.Fatalf("Expected plain errors to be %s; got %s", KindUnknown, KindOf(inner))
	}

	perr := &Error{Kind: KindProvider, Op: "ModifyRecord", Code: "AuthFailure.SignatureFailure", Message: "signature mismatch"}
	if expected, got := "ModifyRecord: provider rejected request: AuthFailure.SignatureFailure: signature mismatch", perr.Error(); expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
	for _, k := range []Kind{KindProvider, KindRecordNotFound, KindEncoding} {
		if k.Retryable() {
			t.Fatalf("Expected %s not to be retryable", k)
		}
	}
}
