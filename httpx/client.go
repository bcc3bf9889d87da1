package httpx

import (
	"bytes"
	"context"
	"io"
	"time"

	"dqx0.com/go/wireclient/internal/obs"
)

type Transport interface {
	RoundTrip(*Request) (*Response, error)
}

// Client sends requests through a Transport. When Transport is nil a
// BasicTransport is built from the client's own fields.
type Client struct {
	Transport Transport
	// Timeout bounds the connect and every socket read and write.
	Timeout     time.Duration
	InsecureTLS bool
	Logger      obs.Logger
	Meter       obs.Meter
}

// Result is the fully buffered outcome of Execute. StatusCode is -1 when
// no response head could be read. Body holds whatever was read before a
// failure, so a body error leaves a truncated Body next to Err.
type Result struct {
	StatusCode int
	Reason     string
	Header     Header
	Body       []byte
	Err        error
}

func (c *Client) transport() Transport {
	if c.Transport != nil {
		return c.Transport
	}
	if c.Timeout == 0 && !c.InsecureTLS && c.Logger == nil && c.Meter == nil {
		return DefaultTransport
	}
	dialTimeout := DefaultDialTimeout
	if c.Timeout > 0 {
		dialTimeout = c.Timeout
	}
	return &BasicTransport{
		DialTimeout:  dialTimeout,
		ReadTimeout:  c.Timeout,
		WriteTimeout: c.Timeout,
		InsecureTLS:  c.InsecureTLS,
		Logger:       c.Logger,
		Meter:        c.Meter,
	}
}

func (c *Client) Do(r *Request) (*Response, error) {
	return c.transport().RoundTrip(r)
}

func (c *Client) Get(url string) (*Response, error) {
	return c.Do(&Request{Method: "GET", URL: url})
}

// Execute performs a request and reads the whole body. A non-nil body is
// sent with a content-length header unless h already carries one.
func (c *Client) Execute(ctx context.Context, method, url string, h Header, body []byte) Result {
	req := &Request{Method: method, URL: url, Header: h.Clone()}
	if body != nil {
		req.Body = bytes.NewReader(body)
		if !req.Header.Has("content-length") {
			req.Header.Set("content-length", itoa(len(body)))
		}
	}
	resp, err := c.Do(WithContext(req, ctx))
	if err != nil {
		return Result{StatusCode: -1, Err: err}
	}
	defer resp.Body.Close()
	res := Result{StatusCode: resp.StatusCode, Reason: resp.Reason, Header: resp.Header}
	res.Body, res.Err = io.ReadAll(resp.Body)
	return res
}
