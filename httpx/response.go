package httpx

import (
	"io"
	"strconv"

	"dqx0.com/go/wireclient/httpx/internal/http1"
)

type Response struct {
	Status     string // e.g. "200 OK"
	StatusCode int
	Reason     string
	Proto      string
	Header     Header
	// Body is read lazily from the connection. For upgrade responses it
	// is the raw byte stream following the head.
	Body io.ReadCloser
	// ContentLength is -1 unless the body has a fixed length.
	ContentLength int64
	Framing       http1.Framing

	conn *Conn
}

// Upgraded reports whether the body is a raw stream after a protocol
// upgrade.
func (r *Response) Upgraded() bool { return r.Framing == http1.FramingRaw }

// Conn returns the connection the response was read from.
func (r *Response) Conn() *Conn { return r.conn }

// responseBody closes the connection when a framed body reaches its end
// or when the caller closes it.
type responseBody struct {
	r    io.Reader
	conn *Conn
	raw  bool
}

func (b *responseBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF && !b.raw {
		_ = b.conn.Close()
	}
	return n, err
}

func (b *responseBody) Close() error {
	return b.conn.Close()
}

func itoa(n int) string { return strconv.Itoa(n) }
