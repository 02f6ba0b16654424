package resolver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
)

// ErrMissingIP is returned when an echo answer carries no address.
var ErrMissingIP = errors.New("no ip field in response")

// TraceEndpoints are Cloudflare's /cdn-cgi/trace echo URLs, primary first.
var TraceEndpoints = map[Family][2]string{
	IPv4: {"https://1.1.1.1/cdn-cgi/trace", "https://1.0.0.1/cdn-cgi/trace"},
	IPv6: {"https://[2606:4700:4700::1111]/cdn-cgi/trace", "https://[2606:4700:4700::1001]/cdn-cgi/trace"},
}

// TraceSource asks a /cdn-cgi/trace endpoint for the caller's address.
type TraceSource struct {
	URL       string
	Client    *http.Client
	UserAgent string
}

func (s *TraceSource) String() string { return s.URL }

// Lookup fetches the trace document and returns its ip field.
func (s *TraceSource) Lookup(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return netip.Addr{}, err
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return netip.Addr{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, fmt.Errorf("http status %d", resp.StatusCode)
	}

	fields, err := ParseTrace(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return netip.Addr{}, err
	}
	ip, ok := fields["ip"]
	if !ok || ip == "" {
		return netip.Addr{}, ErrMissingIP
	}
	return netip.ParseAddr(ip)
}

// ParseTrace parses a newline separated key=value document. Blank lines,
// including the trailing one, are ignored. A non-blank line without '='
// makes the whole document malformed.
func ParseTrace(r io.Reader) (map[string]string, error) {
	fields := make(map[string]string)
	sc := bufio.NewScanner(r)
	ln := 0
	for sc.Scan() {
		ln++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: malformed trace entry %q", ln, line)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}
