// Package tencentcloud implements signed calls to Tencent Cloud API 3.0 endpoints
// using the TC3-HMAC-SHA256 request signing scheme.
package tencentcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-logr/logr"
)

const (
	contentType   = "application/json; charset=utf-8"
	signedHeaders = "content-type;host"

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 10 << 20
)

// Credential is the API key pair used to sign requests.
type Credential struct {
	SecretID  string
	SecretKey string
}

// Config identifies the endpoint and API version a Client targets.
type Config struct {
	Host    string // e.g. dnspod.tencentcloudapi.com
	Service string // e.g. dnspod
	Version string // e.g. 2021-03-23
	Region  string // may be empty for global services
}

// Client performs signed API 3.0 calls against a single service endpoint.
// A Client is safe for concurrent use.
type Client struct {
	credential Credential
	config     Config
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
	logger     logr.Logger
}

type Option func(*Client)

// WithHTTPClient sets the http.Client used for calls. A nil client means http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			hc = http.DefaultClient
		}
		c.httpClient = hc
	}
}

// WithEndpoint overrides the URL requests are sent to.
// The Host header and the signature still use Config.Host.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithTimeout bounds every call. A call that does not finish in time fails with a *TransportError.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithClock replaces the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithLogger(logger logr.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient constructs a Client for the service described by cfg.
func NewClient(cred Credential, cfg Config, options ...Option) (*Client, error) {
	if cred.SecretID == "" || cred.SecretKey == "" {
		return nil, errors.New("tencentcloud.NewClient: secret id and secret key are required")
	}
	if cfg.Host == "" || cfg.Service == "" || cfg.Version == "" {
		return nil, fmt.Errorf("tencentcloud.NewClient: host, service and version are required; got %+v", cfg)
	}
	c := &Client{
		credential: cred,
		config:     cfg,
		endpoint:   "https://" + cfg.Host + "/",
		httpClient: http.DefaultClient,
		timeout:    15 * time.Second,
		now:        time.Now,
		logger:     logr.Discard(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Call sends action with request serialized as the JSON body and decodes the
// contents of the response envelope into response, which may be nil.
//
// An error inside the envelope is returned as a *ProviderError even though the
// HTTP exchange succeeded. Failures to reach the provider are *TransportError.
func (c *Client) Call(ctx context.Context, action string, request, response any) error {
	// encoding/json would replace invalid UTF-8 with U+FFFD and sign the altered text
	if field, bad := invalidUTF8(reflect.ValueOf(request), "request"); bad {
		return &EncodingError{Field: field, Err: errInvalidUTF8}
	}
	body, err := json.Marshal(request)
	if err != nil {
		return &EncodingError{Field: "request", Err: err}
	}

	// every call is signed against its own timestamp
	now := c.now().UTC()
	cr := CanonicalRequest{
		Method:           http.MethodPost,
		URI:              "/",
		CanonicalHeaders: "content-type:" + contentType + "\nhost:" + c.config.Host + "\n",
		SignedHeaders:    signedHeaders,
		Payload:          body,
		Timestamp:        now.Unix(),
		Date:             now.Format("2006-01-02"),
		Service:          c.config.Service,
	}
	signature, err := Sign(c.credential.SecretKey, cr)
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Action: action, Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Host = c.config.Host
	req.Header.Set("Authorization", Authorization(c.credential.SecretID, cr, signature))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Host", c.config.Host)
	req.Header.Set("X-TC-Action", action)
	req.Header.Set("X-TC-Timestamp", strconv.FormatInt(cr.Timestamp, 10))
	req.Header.Set("X-TC-Version", c.config.Version)
	req.Header.Set("X-TC-Region", c.config.Region)

	c.logger.V(2).Info("calling api", "action", action, "host", c.config.Host, "timestamp", cr.Timestamp)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &TransportError{Action: action, Err: fmt.Errorf("error reading response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Action: action, Err: fmt.Errorf("http request returned %s", resp.Status)}
	}

	var envelope struct {
		Response json.RawMessage `json:"Response"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &EncodingError{Field: "response", Err: err}
	}
	if len(envelope.Response) == 0 {
		return &EncodingError{Field: "response", Err: errors.New("missing Response in envelope")}
	}

	var status struct {
		Error *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
		RequestID string `json:"RequestId"`
	}
	if err := json.Unmarshal(envelope.Response, &status); err != nil {
		return &EncodingError{Field: "response", Err: err}
	}
	if status.Error != nil {
		return &ProviderError{
			Action:    action,
			Code:      status.Error.Code,
			Message:   status.Error.Message,
			RequestID: status.RequestID,
		}
	}
	if response == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Response, response); err != nil {
		return &EncodingError{Field: "response", Err: err}
	}
	return nil
}

// invalidUTF8 returns the path of the first string reachable from v that is not valid UTF-8.
func invalidUTF8(v reflect.Value, path string) (string, bool) {
	switch v.Kind() {
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return path, true
		}
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			return invalidUTF8(v.Elem(), path)
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if p, bad := invalidUTF8(v.Field(i), path+"."+t.Field(i).Name); bad {
				return p, true
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			name := fmt.Sprint(iter.Key().Interface())
			if p, bad := invalidUTF8(iter.Key(), path+"["+name+"]"); bad {
				return p, true
			}
			if p, bad := invalidUTF8(iter.Value(), path+"."+name); bad {
				return p, true
			}
		}
	case reflect.Slice, reflect.Array:
		// []byte is encoded as base64
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return "", false
		}
		for i := 0; i < v.Len(); i++ {
			if p, bad := invalidUTF8(v.Index(i), fmt.Sprintf("%s[%d]", path, i)); bad {
				return p, true
			}
		}
	}
	return "", false
}
