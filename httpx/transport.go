package httpx

import (
	"crypto/tls"
	"errors"
	"strconv"
	"time"

	"dqx0.com/go/wireclient/internal/obs"
)

// BasicTransport is the raw-socket HTTP/1.1 Transport. Every round trip
// dials a fresh connection; the connection is closed when the response
// body is exhausted or closed. There is no pooling and no pipelining.
type BasicTransport struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	InsecureTLS  bool
	TLSConfig    *tls.Config
	MaxHeadBytes int

	Logger obs.Logger
	Meter  obs.Meter
}

// DefaultTransport is used by Client when Transport is nil and no
// client-level options are set.
var DefaultTransport = &BasicTransport{
	DialTimeout: DefaultDialTimeout,
}

func (t *BasicTransport) RoundTrip(r *Request) (*Response, error) {
	rtStart := time.Now()
	if r == nil {
		return nil, ErrNilRequest
	}
	if r.URL == "" {
		return nil, errors.New("httpx: request has no URL")
	}
	target, err := ParseTarget(r.URL)
	if err != nil {
		t.metricCounter("httpx_client_requests_error", 1, obs.Label{Key: "stage", Value: "url"})
		return nil, err
	}
	id, ok := RequestIDFrom(r.Context())
	if !ok {
		id = genID()
	}
	c, err := DialTarget(r.Context(), target, t.dialOptions())
	if err != nil {
		t.logf(obs.Error, "[%s] dial %s failed: %v", id, target.Addr(), err)
		t.metricCounter("httpx_client_requests_error", 1, obs.Label{Key: "stage", Value: "dial"})
		return nil, err
	}
	t.metricCounter("httpx_client_conn_dial_total", 1)

	resp, err := c.Execute(r)
	if err != nil {
		t.logf(obs.Warn, "[%s] %s %s failed: %v", id, r.Method, r.URL, err)
		t.metricCounter("httpx_client_requests_error", 1, obs.Label{Key: "stage", Value: "exchange"})
		return nil, err
	}
	t.logf(obs.Info, "[%s] %s %s -> %d", id, r.Method, r.URL, resp.StatusCode)
	t.metricCounter("httpx_client_responses_total", 1, obs.Label{Key: "status", Value: itoaStatus(resp.StatusCode)})
	t.metricHistogram("httpx_client_roundtrip_duration_ms", float64(time.Since(rtStart).Milliseconds()),
		obs.Label{Key: "method", Value: r.Method}, obs.Label{Key: "status", Value: itoaStatus(resp.StatusCode)})
	return resp, nil
}

func (t *BasicTransport) dialOptions() DialOptions {
	return DialOptions{
		Timeout:      t.DialTimeout,
		ReadTimeout:  t.ReadTimeout,
		WriteTimeout: t.WriteTimeout,
		InsecureTLS:  t.InsecureTLS,
		TLSConfig:    t.TLSConfig,
		MaxHeadBytes: t.MaxHeadBytes,
		Logger:       t.Logger,
	}
}

func (t *BasicTransport) logf(level obs.Level, format string, args ...interface{}) {
	logf(t.Logger, level, format, args...)
}

func (t *BasicTransport) metricCounter(name string, value float64, labels ...obs.Label) {
	m := t.getMeter()
	m.Counter(name, value, labels...)
}

func (t *BasicTransport) metricHistogram(name string, value float64, labels ...obs.Label) {
	m := t.getMeter()
	m.Histogram(name, value, labels...)
}

func (t *BasicTransport) getMeter() obs.Meter {
	if t.Meter != nil {
		return t.Meter
	}
	return obs.NopMeter{}
}

func itoaStatus(code int) string {
	return strconv.Itoa(code)
}
