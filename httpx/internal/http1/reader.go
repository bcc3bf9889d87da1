package http1

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultMaxHeadBytes bounds the status line plus all header lines.
const DefaultMaxHeadBytes = 64 << 10

// Field is one header line as it appeared on the wire.
type Field struct {
	Name  string
	Value string
}

// ResponseHead is the status line and header block of a response.
// Field names are lower-cased; order is wire order.
type ResponseHead struct {
	Proto      string
	StatusCode int
	Reason     string
	Fields     []Field
}

// Get returns the first value for name, which must be lower-case.
func (h *ResponseHead) Get(name string) (string, bool) {
	return lookup(h.Fields, name)
}

type Reader struct {
	BR           *bufio.Reader
	MaxHeadBytes int
}

// ReadResponseHead reads up to and including the first empty line and
// parses the buffered head. EOF before the empty line is ErrStreamEnd.
func (r *Reader) ReadResponseHead() (*ResponseHead, error) {
	lines, err := r.readHead()
	if err != nil {
		return nil, err
	}
	return ParseResponseHead(lines)
}

// ParseResponseHead parses head lines (without terminators).
func ParseResponseHead(lines []string) (*ResponseHead, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty head", ErrMalformedResponse)
	}
	proto, code, reason, err := parseStatusLine(lines[0])
	if err != nil {
		return nil, err
	}
	h := &ResponseHead{Proto: proto, StatusCode: code, Reason: reason}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		i := strings.Index(line, ": ")
		if i <= 0 {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformedResponse, line)
		}
		h.Fields = append(h.Fields, Field{Name: strings.ToLower(line[:i]), Value: line[i+2:]})
	}
	return h, nil
}

func parseStatusLine(line string) (proto string, code int, reason string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[0], "HTTP/") {
		return "", 0, "", fmt.Errorf("%w: status line %q", ErrMalformedResponse, line)
	}
	code, err = strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 599 {
		return "", 0, "", fmt.Errorf("%w: status code %q", ErrMalformedResponse, parts[1])
	}
	return parts[0], code, parts[2], nil
}

// readHead collects lines until a bare CRLF (or LF) line.
func (r *Reader) readHead() ([]string, error) {
	limit := r.MaxHeadBytes
	if limit <= 0 {
		limit = DefaultMaxHeadBytes
	}
	var lines []string
	total := 0
	for {
		if total >= limit {
			return nil, ErrHeaderTooLarge
		}
		line, n, err := readLineLimit(r.BR, limit-total)
		total += n
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrStreamEnd
		}
		if err != nil {
			return nil, err
		}
		if line == "" {
			if len(lines) == 0 {
				// a response never starts with an empty line
				return nil, fmt.Errorf("%w: empty status line", ErrMalformedResponse)
			}
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// readLineLimit reads one line, dropping the CR of a CRLF terminator.
// n is the number of raw bytes consumed.
func readLineLimit(br *bufio.Reader, limit int) (string, int, error) {
	var sb strings.Builder
	n := 0
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				return "", n, io.ErrUnexpectedEOF
			}
			return "", n, err
		}
		n++
		if b == '\n' {
			break
		}
		sb.WriteByte(b)
		if limit > 0 && n > limit {
			return "", n, ErrHeaderTooLarge
		}
	}
	return strings.TrimSuffix(sb.String(), "\r"), n, nil
}

func lookup(fields []Field, name string) (string, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}
