package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"

	"github.com/Travis-Britz/dnspod-ddns/tencentcloud"
)

// DNSPodConfig targets the DNSPod API 3.0 endpoint.
var DNSPodConfig = tencentcloud.Config{
	Host:    "dnspod.tencentcloudapi.com",
	Service: "dnspod",
	Version: "2021-03-23",
}

// codeNoRecords is how DescribeRecordList reports an empty result.
const codeNoRecords = "ResourceNotFound.NoDataOfRecord"

// listLimit is the largest page DescribeRecordList returns; the default is 100.
const listLimit = 3000

type describeRecordListRequest struct {
	Domain     string `json:"Domain"`
	Subdomain  string `json:"Subdomain,omitempty"`
	RecordType string `json:"RecordType,omitempty"`
	Limit      int    `json:"Limit,omitempty"`
}

type describeRecordListResponse struct {
	RecordList []struct {
		RecordID uint64 `json:"RecordId"`
		Value    string `json:"Value"`
		Name     string `json:"Name"`
		Type     string `json:"Type"`
		Line     string `json:"Line"`
		TTL      int    `json:"TTL"`
	} `json:"RecordList"`
}

type modifyRecordRequest struct {
	Domain     string `json:"Domain"`
	RecordType string `json:"RecordType"`
	RecordLine string `json:"RecordLine"`
	Value      string `json:"Value"`
	RecordID   uint64 `json:"RecordId"`
	SubDomain  string `json:"SubDomain,omitempty"`
	TTL        int    `json:"TTL,omitempty"`
}

// caller is the part of *tencentcloud.Client the DNSPod provider needs.
type caller interface {
	Call(ctx context.Context, action string, request, response any) error
}

// NewDNSPod constructs a Provider backed by the DNSPod API.
// The options configure the underlying tencentcloud.Client.
func NewDNSPod(secretID, secretKey string, options ...tencentcloud.Option) (Provider, error) {
	p, err := newDNSPodProvider(tencentcloud.Credential{SecretID: secretID, SecretKey: secretKey}, options...)
	if err != nil {
		return nil, fmt.Errorf("ddns.NewDNSPod: %w", err)
	}
	return p, nil
}

// dnspodProvider implements ddns.Provider.
type dnspodProvider struct {
	api    caller
	logger logr.Logger

	// retained so that settings applied by ddns.New can rebuild the client
	credential tencentcloud.Credential
	options    []tencentcloud.Option
}

func newDNSPodProvider(cred tencentcloud.Credential, options ...tencentcloud.Option) (*dnspodProvider, error) {
	p := &dnspodProvider{logger: logr.Discard(), credential: cred, options: options}
	if err := p.rebuild(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *dnspodProvider) rebuild() error {
	opts := append([]tencentcloud.Option{tencentcloud.WithLogger(p.logger)}, p.options...)
	c, err := tencentcloud.NewClient(p.credential, DNSPodConfig, opts...)
	if err != nil {
		return err
	}
	p.api = c
	return nil
}

// with appends client options. The credential was validated at construction,
// so rebuilding cannot fail.
func (p *dnspodProvider) with(options ...tencentcloud.Option) {
	p.options = append(p.options, options...)
	_ = p.rebuild()
}

func (p *dnspodProvider) SetLogger(logger logr.Logger) {
	p.logger = logger
	_ = p.rebuild()
}

func (p *dnspodProvider) SetHTTPClient(hc *http.Client) { p.with(tencentcloud.WithHTTPClient(hc)) }

func (p *dnspodProvider) SetTimeout(d time.Duration) { p.with(tencentcloud.WithTimeout(d)) }

// ListRecords implements ddns.Provider with the DescribeRecordList action.
// The subdomain filter is applied by DNSPod, so large zones are not cut off by paging.
func (p *dnspodProvider) ListRecords(ctx context.Context, domain, subdomain, recordType string) ([]Record, error) {
	var resp describeRecordListResponse
	req := describeRecordListRequest{Domain: domain, Subdomain: subdomain, RecordType: recordType, Limit: listLimit}
	err := p.api.Call(ctx, "DescribeRecordList", req, &resp)
	if err != nil {
		var perr *tencentcloud.ProviderError
		if errors.As(err, &perr) && perr.Code == codeNoRecords {
			p.logger.V(1).Info("provider reports no records", "domain", domain, "subdomain", subdomain, "type", recordType)
			return nil, nil
		}
		return nil, classify("DescribeRecordList", err)
	}

	records := make([]Record, 0, len(resp.RecordList))
	for _, r := range resp.RecordList {
		records = append(records, Record{
			ID:    strconv.FormatUint(r.RecordID, 10),
			Name:  r.Name,
			Type:  r.Type,
			Line:  r.Line,
			Value: r.Value,
			TTL:   r.TTL,
		})
	}
	p.logger.V(1).Info("listed records", "domain", domain, "count", len(records))
	return records, nil
}

// ModifyRecord implements ddns.Provider with the ModifyRecord action.
func (p *dnspodProvider) ModifyRecord(ctx context.Context, domain string, rec Record) error {
	id, err := strconv.ParseUint(rec.ID, 10, 64)
	if err != nil {
		return &Error{Kind: KindEncoding, Op: "ModifyRecord", Err: fmt.Errorf("record id %q is not numeric: %w", rec.ID, err)}
	}
	req := modifyRecordRequest{
		Domain:     domain,
		RecordType: rec.Type,
		RecordLine: rec.Line,
		Value:      rec.Value,
		RecordID:   id,
		SubDomain:  rec.Name,
		TTL:        rec.TTL,
	}
	if err := p.api.Call(ctx, "ModifyRecord", req, nil); err != nil {
		return classify("ModifyRecord", err)
	}
	return nil
}

// classify translates tencentcloud errors into ddns error kinds.
func classify(op string, err error) error {
	var (
		perr *tencentcloud.ProviderError
		terr *tencentcloud.TransportError
		eerr *tencentcloud.EncodingError
	)
	switch {
	case errors.As(err, &perr):
		return &Error{Kind: KindProvider, Op: op, Code: perr.Code, Message: perr.Message, Err: err}
	case errors.As(err, &terr):
		return transportError(op, err)
	case errors.As(err, &eerr):
		return &Error{Kind: KindEncoding, Op: op, Err: err}
	}
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}
