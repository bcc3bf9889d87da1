package httpx

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Target is the connection-relevant part of an http, https, ws or wss URL.
type Target struct {
	Scheme   string
	Host     string // host[:port] as written, sent as the Host header
	Hostname string
	Port     int
	TLS      bool
	Path     string // always starts with "/", includes the query
}

// Addr is the dial address.
func (t *Target) Addr() string {
	return net.JoinHostPort(t.Hostname, strconv.Itoa(t.Port))
}

// ParseTarget splits scheme://host[:port]/path. The fragment is dropped.
func ParseTarget(raw string) (*Target, error) {
	parts := strings.SplitN(raw, "/", 4)
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}
	if parts[1] != "" || !strings.HasSuffix(parts[0], ":") {
		return nil, fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}
	t := &Target{Scheme: strings.ToLower(strings.TrimSuffix(parts[0], ":"))}
	switch t.Scheme {
	case "http", "ws":
		t.Port = 80
	case "https", "wss":
		t.Port = 443
		t.TLS = true
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedURL, t.Scheme)
	}

	t.Host = parts[2]
	if t.Host == "" {
		return nil, fmt.Errorf("%w: empty host in %q", ErrMalformedURL, raw)
	}
	hostname, port, err := splitHostPort(t.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	t.Hostname = hostname
	if port != 0 {
		t.Port = port
	}

	path := "/"
	if len(parts) == 4 {
		path += parts[3]
	}
	if i := strings.IndexByte(path, '#'); i >= 0 {
		path = path[:i]
	}
	t.Path = path
	return t, nil
}

func splitHostPort(hp string) (string, int, error) {
	hasPort := strings.LastIndexByte(hp, ':') > strings.LastIndexByte(hp, ']')
	if !hasPort {
		return strings.Trim(hp, "[]"), 0, nil
	}
	host, ps, err := net.SplitHostPort(hp)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(ps)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("bad port %q", ps)
	}
	if host == "" {
		return "", 0, fmt.Errorf("empty host in %q", hp)
	}
	return host, port, nil
}
