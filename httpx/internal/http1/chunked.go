package http1

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxChunkLine = 4 << 10

// chunkedBody decodes Transfer-Encoding: chunked.
type chunkedBody struct {
	br       *bufio.Reader
	remain   int64 // bytes left in the current chunk; -1 before the first size line
	finished bool
	err      error
}

func newChunkedBody(br *bufio.Reader) *chunkedBody {
	return &chunkedBody{br: br, remain: -1}
}

func (c *chunkedBody) Read(p []byte) (int, error) {
	if c.finished {
		return 0, io.EOF
	}
	if c.err != nil {
		return 0, c.err
	}
	if c.remain <= 0 {
		size, err := c.readChunkSize()
		if err != nil {
			return 0, c.fail(err)
		}
		if size == 0 {
			if err := c.readTrailers(); err != nil {
				return 0, c.fail(err)
			}
			c.finished = true
			return 0, io.EOF
		}
		c.remain = size
	}
	if len(p) == 0 {
		return 0, nil
	}
	toRead := int64(len(p))
	if toRead > c.remain {
		toRead = c.remain
	}
	n, err := io.ReadFull(c.br, p[:toRead])
	c.remain -= int64(n)
	if err != nil {
		return n, c.fail(err)
	}
	if c.remain == 0 {
		if err := c.expectCRLF(); err != nil {
			return n, c.fail(err)
		}
	}
	return n, nil
}

func (c *chunkedBody) fail(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = ErrUnexpectedEOF
	}
	c.err = err
	return err
}

func (c *chunkedBody) readChunkSize() (int64, error) {
	line, _, err := readLineLimit(c.br, maxChunkLine)
	if err == ErrHeaderTooLarge {
		return 0, fmt.Errorf("%w: size line too long", ErrMalformedChunk)
	}
	if err != nil {
		return 0, err
	}
	// Strip chunk extensions if any: "<hex>;<ext>"
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, fmt.Errorf("%w: empty size line", ErrMalformedChunk)
	}
	if strings.TrimLeft(line, "0123456789abcdefABCDEF") != "" {
		return 0, fmt.Errorf("%w: size %q", ErrMalformedChunk, line)
	}
	n, err := strconv.ParseInt(line, 16, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: size %q", ErrMalformedChunk, line)
	}
	return n, nil
}

func (c *chunkedBody) expectCRLF() error {
	b1, err := c.br.ReadByte()
	if err != nil {
		return err
	}
	b2, err := c.br.ReadByte()
	if err != nil {
		return err
	}
	if b1 != '\r' || b2 != '\n' {
		return fmt.Errorf("%w: expected CRLF after chunk, got %q%q", ErrMalformedChunk, b1, b2)
	}
	return nil
}

// readTrailers discards trailer fields up to the final empty line.
func (c *chunkedBody) readTrailers() error {
	for {
		line, _, err := readLineLimit(c.br, maxChunkLine)
		if err == io.EOF {
			// peer closed right after the last chunk
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
	}
}
