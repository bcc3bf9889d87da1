package httpx

import (
	"fmt"
	"io"

	"dqx0.com/go/wireclient/httpx/internal/http1"
	"dqx0.com/go/wireclient/internal/obs"
)

// WriteRequest writes the request head. Only the first call on a Conn
// writes anything; later calls are no-ops.
func (c *Conn) WriteRequest(method, path string, h *Header) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.headSent {
		return nil
	}
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.headSent = true
	if path == "" {
		path = c.target.Path
	}
	if h == nil {
		h = &Header{}
	}
	return http1.WriteRequestHead(c.bw, method, path, c.target.Host, h.fields())
}

// ReadResponse blocks until the response head is parsed and returns a
// response whose body has not been read yet.
func (c *Conn) ReadResponse() (*Response, error) {
	r := &http1.Reader{BR: c.br, MaxHeadBytes: c.opts.MaxHeadBytes}
	head, err := r.ReadResponseHead()
	if err != nil {
		return nil, err
	}
	framing, n := http1.SelectFraming(head)
	resp := &Response{
		Status:        fmt.Sprintf("%d %s", head.StatusCode, head.Reason),
		StatusCode:    head.StatusCode,
		Reason:        head.Reason,
		Proto:         head.Proto,
		Header:        headerFromFields(head.Fields),
		ContentLength: n,
		Framing:       framing,
		conn:          c,
	}
	resp.Body = &responseBody{r: http1.NewBody(c.br, framing, n), conn: c, raw: framing == http1.FramingRaw}
	return resp, nil
}

// Execute writes req on the connection and waits for the response head.
// The outcome is cached: calling Execute again returns the same response
// and error without touching the socket. Any failure before the head is
// parsed closes the connection.
func (c *Conn) Execute(req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executed {
		return c.resp, c.err
	}
	c.executed = true
	c.resp, c.err = c.execute(req)
	if c.err != nil {
		_ = c.Close()
	}
	return c.resp, c.err
}

func (c *Conn) execute(req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	method := req.Method
	if method == "" {
		method = "GET"
	}
	path := req.Path
	if path == "" {
		path = c.target.Path
	}
	if err := c.WriteRequest(method, path, &req.Header); err != nil {
		logf(c.opts.Logger, obs.Warn, "write request head failed: %v", err)
		return nil, err
	}
	if err := c.writeBody(req.Body); err != nil {
		logf(c.opts.Logger, obs.Warn, "write body failed: %v", err)
		return nil, err
	}
	resp, err := c.ReadResponse()
	if err != nil {
		logf(c.opts.Logger, obs.Warn, "read response head failed: %v", err)
		return nil, err
	}
	logf(c.opts.Logger, obs.Debug, "%s %s -> %s (%s body)", method, path, resp.Status, resp.Framing)
	return resp, nil
}

func (c *Conn) writeBody(body io.Reader) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if body != nil {
		if _, err := io.Copy(c.bw, body); err != nil {
			return err
		}
	}
	return c.bw.Flush()
}
