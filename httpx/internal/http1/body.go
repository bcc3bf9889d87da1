package http1

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Framing is how the end of a response body is found.
type Framing int

const (
	FramingFixed Framing = iota
	FramingChunked
	FramingRaw
)

func (f Framing) String() string {
	switch f {
	case FramingFixed:
		return "fixed"
	case FramingChunked:
		return "chunked"
	case FramingRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// SelectFraming picks the body framing for a response head: chunked
// transfer-encoding wins, then an upgrade header, then content-length.
// A missing or unparsable content-length yields a fixed length of 0.
func SelectFraming(h *ResponseHead) (Framing, int64) {
	if te, ok := h.Get("transfer-encoding"); ok && strings.EqualFold(strings.TrimSpace(te), "chunked") {
		return FramingChunked, -1
	}
	if _, ok := h.Get("upgrade"); ok {
		return FramingRaw, -1
	}
	cl, ok := h.Get("content-length")
	if !ok {
		return FramingFixed, 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil || n < 0 {
		return FramingFixed, 0
	}
	return FramingFixed, n
}

// NewBody returns a reader over br that ends where the framing says the
// body ends. length is only used for FramingFixed.
func NewBody(br *bufio.Reader, framing Framing, length int64) io.Reader {
	switch framing {
	case FramingChunked:
		return newChunkedBody(br)
	case FramingRaw:
		return br
	default:
		return &fixedBody{br: br, remain: length}
	}
}

// fixedBody delivers exactly remain bytes and never reads past them.
type fixedBody struct {
	br     *bufio.Reader
	remain int64
}

func (b *fixedBody) Read(p []byte) (int, error) {
	if b.remain <= 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > b.remain {
		p = p[:b.remain]
	}
	n, err := b.br.Read(p)
	b.remain -= int64(n)
	if err == io.EOF {
		if b.remain > 0 {
			return n, ErrUnexpectedEOF
		}
		err = nil
	}
	return n, err
}
