package http1

import (
	"bufio"
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// WriteRequestHead writes the request line, a Host line and fields in the
// given order, then the blank line ending the head. A "host" field in
// fields replaces host and is not written twice. Nothing is flushed.
func WriteRequestHead(bw *bufio.Writer, method, path, host string, fields []Field) error {
	method = strings.ToUpper(method)
	if !httpguts.ValidHeaderFieldName(method) {
		return fmt.Errorf("%w: method %q", ErrInvalidRequestLine, method)
	}
	if !validPath(path) {
		return fmt.Errorf("%w: path %q", ErrInvalidRequestLine, path)
	}
	for _, f := range fields {
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return fmt.Errorf("%w: name %q", ErrInvalidHeader, f.Name)
		}
	}
	if v, ok := lookup(fields, "host"); ok {
		host = v
	}
	if _, err := fmt.Fprintf(bw, "%s %s HTTP/1.1\r\n", method, path); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "Host: %s\r\n", sanitizeHeaderValue(host)); err != nil {
		return err
	}
	for _, f := range fields {
		if f.Name == "host" {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", f.Name, sanitizeHeaderValue(f.Value)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(bw, "\r\n")
	return err
}

func validPath(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	for i := 0; i < len(p); i++ {
		if c := p[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

func sanitizeHeaderValue(v string) string {
	if v == "" || httpguts.ValidHeaderFieldValue(v) {
		return v
	}
	// Remove CR/LF and other control chars except HTAB
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '\r' || c == '\n' || c == 0x7f {
			continue
		}
		if c < 0x20 && c != '\t' {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
