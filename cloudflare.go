package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
)

// NewCloudflare constructs a Provider backed by the Cloudflare API using a zone-scoped API token.
//
// Cloudflare has no routing lines, so records it returns have an empty Line.
func NewCloudflare(token string) (Provider, error) {
	p, err := newCloudflareProvider(token)
	if err != nil {
		return nil, fmt.Errorf("ddns.NewCloudflare: %w", err)
	}
	return p, nil
}

func newCloudflareProvider(token string, options ...cloudflare.Option) (cf *cloudflareProvider, err error) {
	cf = new(cloudflareProvider)
	cf.api, err = cloudflare.NewWithAPIToken(token, options...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	cf.logger = logr.Discard()
	cf.timeout = 15 * time.Second
	return cf, nil
}

// cloudflareProvider implements ddns.Provider.
type cloudflareProvider struct {
	api     *cloudflare.API
	logger  logr.Logger
	timeout time.Duration // bounds each ListRecords and ModifyRecord call
}

func (cf *cloudflareProvider) SetLogger(logger logr.Logger) { cf.logger = logger }

func (cf *cloudflareProvider) SetTimeout(d time.Duration) { cf.timeout = d }

func (cf *cloudflareProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if cf.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cf.timeout)
}

func (cf *cloudflareProvider) SetHTTPClient(hc *http.Client) {
	if hc == nil {
		hc = http.DefaultClient
	}
	cloudflare.HTTPClient(hc)(cf.api)
}

// ListRecords implements ddns.Provider.
// Record names are returned relative to domain, with "@" for the apex.
func (cf *cloudflareProvider) ListRecords(ctx context.Context, domain, subdomain, recordType string) ([]Record, error) {
	ctx, cancel := cf.withTimeout(ctx)
	defer cancel()
	zid, err := cf.getZoneIDFromDomain(ctx, domain)
	if err != nil {
		return nil, cf.fail(ctx, "ListZones", err)
	}
	cf.logger.V(1).Info("got zone ID", "zone", zid, "domain", domain)

	params := cloudflare.ListDNSRecordsParams{Type: recordType}
	if subdomain != "" {
		params.Name = absoluteName(subdomain, domain)
	}
	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zid), params)
	if err != nil {
		return nil, cf.fail(ctx, "ListDNSRecords", err)
	}
	cf.logger.V(1).Info("found existing records", "count", len(records))

	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, Record{
			ID:    r.ID,
			Name:  relativeName(r.Name, domain),
			Type:  r.Type,
			Value: r.Content,
			TTL:   r.TTL,
		})
	}
	return out, nil
}

// ModifyRecord implements ddns.Provider.
func (cf *cloudflareProvider) ModifyRecord(ctx context.Context, domain string, rec Record) error {
	ctx, cancel := cf.withTimeout(ctx)
	defer cancel()
	zid, err := cf.getZoneIDFromDomain(ctx, domain)
	if err != nil {
		return cf.fail(ctx, "ListZones", err)
	}
	_, err = cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.UpdateDNSRecordParams{
		ID:      rec.ID,
		Type:    rec.Type,
		Name:    absoluteName(rec.Name, domain),
		Content: rec.Value,
		TTL:     rec.TTL,
	})
	if err != nil {
		return cf.fail(ctx, "UpdateDNSRecord", err)
	}
	return nil
}

func (cf *cloudflareProvider) getZoneIDFromDomain(ctx context.Context, domain string) (zid string, err error) {
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing zones: %w", err)
	}

	max := 0
	for _, z := range zones {
		if (domain == z.Name || strings.HasSuffix(domain, "."+z.Name)) && len(z.Name) > max {
			max, zid = len(z.Name), z.ID
		}
	}
	if max == 0 {
		return "", &Error{Kind: KindProvider, Op: "ListZones", Code: "ZoneNotFound", Message: fmt.Sprintf("unable to find a zone matching %q", domain)}
	}
	return zid, nil
}

// fail reports any error of a call whose context expired as a transport failure.
func (cf *cloudflareProvider) fail(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return transportError(op, errors.Join(ctx.Err(), err))
	}
	return cf.classify(op, err)
}

// classify separates network failures from API rejections.
func (cf *cloudflareProvider) classify(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var (
		urlErr *url.Error
		netErr net.Error
	)
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return transportError(op, err)
	}
	return &Error{Kind: KindProvider, Op: op, Code: "cloudflare", Message: err.Error(), Err: err}
}

func relativeName(name, domain string) string {
	name = strings.TrimSuffix(name, ".")
	if name == domain {
		return "@"
	}
	return strings.TrimSuffix(name, "."+domain)
}

func absoluteName(name, domain string) string {
	if name == "@" || name == "" {
		return domain
	}
	return name + "." + domain
}
