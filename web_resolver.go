package ddns

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"
)

// WebResolver constructs a resolver which uses external web services to look up a "public" IP address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IPv4 or IPv6 address as the first line of the response body.
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return the response.
// If multiple are given,
// then the resolver will request from up to three of them and only return successfully if the first two non-error responses agreed on the IP.
// This approach is taken due to the sensitive nature of having control over DNS records.
//
// The recommended approach is to run your own service over https.
func WebResolver(serviceURL ...string) (Resolver, error) {
	URLs, err := parseURLs(serviceURL)
	if err != nil {
		return nil, err
	}
	return &webResolver{serviceURLs: URLs, parse: parseText}, nil
}

// JSONResolver constructs a resolver for services that answer with a JSON object,
// reading the address from the top level string field named field.
// For example http://ip-api.com/json/ answers {"query": "203.0.113.7", ...}.
// Multiple services are treated the same way as in WebResolver.
func JSONResolver(field string, serviceURL ...string) (Resolver, error) {
	if field == "" {
		field = "query"
	}
	URLs, err := parseURLs(serviceURL)
	if err != nil {
		return nil, err
	}
	return &webResolver{serviceURLs: URLs, parse: parseJSONField(field)}, nil
}

func parseURLs(serviceURL []string) ([]*url.URL, error) {
	var URLs []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing URL: %w", err)
		}
		URLs = append(URLs, pu)
	}
	return URLs, nil
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []*url.URL
	parse       func(io.Reader) (netip.Addr, error)
}

func (wr *webResolver) SetHTTPClient(hc *http.Client) { wr.httpClient = hc }

// Resolve implements ddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return netip.Addr{}, discoveryError("Resolve", errors.New("no external IP lookup services were provided"))
	}
	if len(wr.serviceURLs) == 1 {
		addr, err := wr.lookup(ctx, wr.serviceURLs[0])
		if err != nil {
			return netip.Addr{}, discoveryError("Resolve", err)
		}
		return addr, nil
	}

	// With several services the first two successful answers must agree.
	// todo: round-robin or randomize resolver selection. right now it's just using the first three.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	useCount := 3
	if len(wr.serviceURLs) < useCount {
		useCount = len(wr.serviceURLs)
	}
	results := make(chan result, useCount)

	var wg sync.WaitGroup
	wg.Add(useCount)
	for i := 0; i < useCount; i++ {
		u := wr.serviceURLs[i]
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}()
	}
	go func() { wg.Wait(); close(results) }()

	resultCount := 0
	var errs []error
	var ip netip.Addr
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		resultCount++ // don't increase the result count for errors
		if !ip.IsValid() {
			ip = r.addr
			continue
		}
		if ip == r.addr {
			return ip, nil
		}
		return netip.Addr{}, discoveryError("Resolve", fmt.Errorf("IP resolvers did not agree on our IP: %s != %s", ip, r.addr))
	}
	return netip.Addr{}, discoveryError("Resolve", fmt.Errorf("not enough resolvers responded without errors: %w", errors.Join(errs...)))
}

func (wr *webResolver) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that all calls to resolve will eventually complete even if the user supplied context.TODO or context.Background
	// using http.DefaultClient (with no timeout).
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return netip.Addr{}, fmt.Errorf("http request to %s returned %s", url.Host, resp.Status)
	}

	parse := wr.parse
	if parse == nil {
		parse = parseText
	}
	return parse(io.LimitReader(resp.Body, 64<<10))
}

func parseText(body io.Reader) (netip.Addr, error) {
	scanner := bufio.NewReader(body)
	ipstring, _ := scanner.ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	return ip, nil
}

func parseJSONField(field string) func(io.Reader) (netip.Addr, error) {
	return func(body io.Reader) (netip.Addr, error) {
		var doc map[string]json.RawMessage
		if err := json.NewDecoder(body).Decode(&doc); err != nil {
			return netip.Addr{}, fmt.Errorf("error decoding JSON response: %w", err)
		}
		raw, ok := doc[field]
		if !ok {
			return netip.Addr{}, fmt.Errorf("JSON response has no %q field", field)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return netip.Addr{}, fmt.Errorf("JSON field %q is not a string: %w", field, err)
		}
		ip, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return netip.Addr{}, fmt.Errorf("error parsing IP address from JSON field %q: %w", field, err)
		}
		return ip, nil
	}
}
