package httpx

import (
	"bytes"
	"context"
	"io"
)

// Request represents an HTTP/1.1 request.
//
// URL is used by transports that dial on their own; Conn.Execute only
// looks at Path (empty means the Conn's target path). Body is written
// verbatim: set a content-length header yourself, chunked request
// bodies are not supported.
type Request struct {
	Method string
	URL    string
	Path   string
	Header Header
	Body   io.Reader
	ctx    context.Context
}

// NewRequest builds a request with a byte body. A non-nil body also sets
// content-length.
func NewRequest(method, url string, body []byte) *Request {
	r := &Request{Method: method, URL: url}
	if body != nil {
		r.Body = bytes.NewReader(body)
		r.Header.Set("content-length", itoa(len(body)))
	}
	return r
}

// Context returns the request's context. If nil, returns Background.
func (r *Request) Context() context.Context {
	if r == nil || r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r with its context changed to ctx.
func WithContext(r *Request, ctx context.Context) *Request {
	if r == nil {
		return nil
	}
	r2 := *r
	r2.ctx = ctx
	return &r2
}
