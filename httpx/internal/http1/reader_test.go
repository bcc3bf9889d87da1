package http1

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func readHead(t *testing.T, raw string, max int) (*ResponseHead, *bufio.Reader, error) {
	t.Helper()
	br := bufio.NewReader(strings.NewReader(raw))
	r := &Reader{BR: br, MaxHeadBytes: max}
	h, err := r.ReadResponseHead()
	return h, br, err
}

func TestReader_StatusLine(t *testing.T) {
	for _, code := range []int{100, 101, 200, 204, 301, 404, 418, 500, 599} {
		raw := fmt.Sprintf("HTTP/1.1 %d Some Reason Phrase\r\n\r\n", code)
		h, _, err := readHead(t, raw, 0)
		if err != nil {
			t.Fatalf("code %d: %v", code, err)
		}
		if h.StatusCode != code || h.Reason != "Some Reason Phrase" || h.Proto != "HTTP/1.1" {
			t.Fatalf("got %q %d %q", h.Proto, h.StatusCode, h.Reason)
		}
	}
}

func TestReader_HeadersGroupedInOrder(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nSet-Cookie: a=1\r\nContent-Type: text/plain\r\nset-cookie: b=2\r\n\r\nbody"
	h, br, err := readHead(t, raw, 0)
	if err != nil {
		t.Fatalf("ReadResponseHead error: %v", err)
	}
	if len(h.Fields) != 3 {
		t.Fatalf("fields=%d", len(h.Fields))
	}
	want := []Field{{"set-cookie", "a=1"}, {"content-type", "text/plain"}, {"set-cookie", "b=2"}}
	for i, f := range h.Fields {
		if f != want[i] {
			t.Fatalf("field %d = %+v, want %+v", i, f, want[i])
		}
	}
	rest, _ := io.ReadAll(br)
	if string(rest) != "body" {
		t.Fatalf("head consumed body bytes: rest=%q", rest)
	}
}

func TestReader_NoHeaders(t *testing.T) {
	h, _, err := readHead(t, "HTTP/1.1 204 No Content\r\n\r\n", 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(h.Fields) != 0 {
		t.Fatalf("fields=%v", h.Fields)
	}
}

func TestReader_BareLF(t *testing.T) {
	h, _, err := readHead(t, "HTTP/1.1 200 OK\nX-A: 1\n\n", 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if v, _ := h.Get("x-a"); v != "1" {
		t.Fatalf("x-a=%q", v)
	}
}

func TestReader_StreamEnd(t *testing.T) {
	for _, raw := range []string{"", "HTTP/1.1 200 OK\r\n", "HTTP/1.1 200 OK\r\nA: b\r\n", "HTTP/1.1 20"} {
		if _, _, err := readHead(t, raw, 0); !errors.Is(err, ErrStreamEnd) {
			t.Fatalf("raw=%q err=%v, want ErrStreamEnd", raw, err)
		}
	}
}

func TestReader_MalformedStatusLine(t *testing.T) {
	for _, raw := range []string{
		"HTTP/1.1 200\r\n\r\n",
		"HTTP/1.1 abc OK\r\n\r\n",
		"HTTP/1.1 99 Low\r\n\r\n",
		"HTTP/1.1 600 High\r\n\r\n",
		"SIP/2.0 200 OK\r\n\r\n",
		"\r\n",
	} {
		if _, _, err := readHead(t, raw, 0); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("raw=%q err=%v, want ErrMalformedResponse", raw, err)
		}
	}
}

func TestReader_MalformedHeaderLine(t *testing.T) {
	for _, raw := range []string{
		"HTTP/1.1 200 OK\r\nNoSeparator\r\n\r\n",
		"HTTP/1.1 200 OK\r\nName:value\r\n\r\n",
		"HTTP/1.1 200 OK\r\n: value\r\n\r\n",
	} {
		if _, _, err := readHead(t, raw, 0); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("raw=%q err=%v, want ErrMalformedResponse", raw, err)
		}
	}
}

func TestReader_ValueKeepsSeparatorTail(t *testing.T) {
	h, _, err := readHead(t, "HTTP/1.1 200 OK\r\nX-Time: 12: 30\r\n\r\n", 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if v, _ := h.Get("x-time"); v != "12: 30" {
		t.Fatalf("x-time=%q", v)
	}
}

func TestReader_MaxHeadBytes(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nA: " + strings.Repeat("x", 100) + "\r\n\r\n"
	if _, _, err := readHead(t, raw, 32); !errors.Is(err, ErrHeaderTooLarge) {
		t.Fatalf("err=%v, want ErrHeaderTooLarge", err)
	}
}

func TestSelectFraming(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		want   Framing
		length int64
	}{
		{"none", nil, FramingFixed, 0},
		{"content-length", []Field{{"content-length", "42"}}, FramingFixed, 42},
		{"bad content-length", []Field{{"content-length", "x"}}, FramingFixed, 0},
		{"negative content-length", []Field{{"content-length", "-3"}}, FramingFixed, 0},
		{"chunked", []Field{{"transfer-encoding", "chunked"}, {"content-length", "5"}}, FramingChunked, -1},
		{"chunked beats upgrade", []Field{{"upgrade", "websocket"}, {"transfer-encoding", "chunked"}}, FramingChunked, -1},
		{"upgrade", []Field{{"upgrade", "websocket"}, {"content-length", "5"}}, FramingRaw, -1},
		{"other te", []Field{{"transfer-encoding", "gzip"}, {"content-length", "7"}}, FramingFixed, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := SelectFraming(&ResponseHead{Fields: tt.fields})
			if got != tt.want || n != tt.length {
				t.Fatalf("SelectFraming = %v,%d want %v,%d", got, n, tt.want, tt.length)
			}
		})
	}
}
