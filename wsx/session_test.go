package wsx

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"dqx0.com/go/wireclient/httpx"
	"dqx0.com/go/wireclient/internal/obs"
)

// peer is the server end of an in-memory connection.
type peer struct {
	t  *testing.T
	nc net.Conn
	br *bufio.Reader
}

func (p *peer) send(op Opcode, fin bool, payload []byte) {
	p.t.Helper()
	if err := WriteFrame(p.nc, &Frame{Fin: fin, Opcode: op, Payload: payload}); err != nil {
		p.t.Errorf("peer write: %v", err)
	}
}

func (p *peer) read() *Frame {
	p.t.Helper()
	_ = p.nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := ReadFrame(p.br, 0)
	if err != nil {
		p.t.Fatalf("peer read: %v", err)
	}
	if !f.Masked {
		p.t.Fatalf("client frame not masked: %+v", f)
	}
	return f
}

func switching(extra string) func(key string) string {
	return func(key string) string {
		return "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
			"Sec-WebSocket-Accept: " + AcceptKey(key) + "\r\n" + extra + "\r\n"
	}
}

// startPipe returns a client Conn whose peer answers the first request
// head with respond(sec-websocket-key). The request lines arrive on the
// returned channel.
func startPipe(t *testing.T, respond func(key string) string) (*httpx.Conn, *peer, <-chan []string) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })
	tg, err := httpx.ParseTarget("ws://example.com/chat")
	if err != nil {
		t.Fatal(err)
	}
	conn := httpx.NewConn(a, tg, httpx.DialOptions{})
	p := &peer{t: t, nc: b, br: bufio.NewReader(b)}
	lines := make(chan []string, 1)
	go func() {
		var got []string
		key := ""
		for {
			line, err := p.br.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			got = append(got, line)
			if k, v, ok := strings.Cut(line, ": "); ok && strings.EqualFold(k, "sec-websocket-key") {
				key = v
			}
		}
		lines <- got
		_, _ = io.WriteString(b, respond(key))
	}()
	return conn, p, lines
}

type recorder struct {
	mu     sync.Mutex
	events []string
	closes int
	msgs   chan Message
}

func newRecorder() *recorder { return &recorder{msgs: make(chan Message, 16)} }

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) OnOpen(s *Session) { r.add("open") }
func (r *recorder) OnMessage(s *Session, m Message) { r.msgs <- m }
func (r *recorder) OnPong(s *Session, p []byte) { r.add("pong " + string(p)) }

func (r *recorder) OnClose(s *Session, c int, why string) {
	r.mu.Lock()
	r.closes++
	r.mu.Unlock()
	r.add(fmt.Sprintf("close %d %s", c, why))
}

func (r *recorder) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...), r.closes
}

func (r *recorder) message(t *testing.T) Message {
	t.Helper()
	select {
	case m := <-r.msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("no message")
	}
	return Message{}
}

func openSession(t *testing.T, opts Options) (*Session, *peer, *recorder) {
	t.Helper()
	conn, p, lines := startPipe(t, switching(""))
	hs, err := Handshake(conn, httpx.Header{})
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	<-lines
	rec := newRecorder()
	return NewSession(hs, rec, opts), p, rec
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish, state %s", s.State())
	}
}

func TestServerCloseSequence(t *testing.T) {
	s, p, rec := openSession(t, Options{})
	if s.State() != Open {
		t.Fatalf("state = %s", s.State())
	}
	p.send(OpClose, true, EncodeClose(CloseNormal, "bye"))

	echo := p.read()
	if echo.Opcode != OpClose || !bytes.Equal(echo.Payload, EncodeClose(CloseNormal, "bye")) {
		t.Fatalf("echo = %+v", echo)
	}
	waitDone(t, s)
	events, closes := rec.snapshot()
	if closes != 1 || strings.Join(events, "|") != "open|close 1000 bye" {
		t.Fatalf("events = %v", events)
	}
	if !s.Closed() || !s.Handshake().Conn.Closed() {
		t.Fatalf("state = %s, conn closed = %v", s.State(), s.Handshake().Conn.Closed())
	}
	if err := s.SendText("late"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("send after close = %v", err)
	}
}

func TestEmptyCloseFrameReportsNoStatus(t *testing.T) {
	s, p, rec := openSession(t, Options{})
	p.send(OpClose, true, nil)
	if f := p.read(); f.Opcode != OpClose || len(f.Payload) != 0 {
		t.Fatalf("echo = %+v", f)
	}
	waitDone(t, s)
	if events, _ := rec.snapshot(); events[len(events)-1] != "close 1005 " {
		t.Fatalf("events = %v", events)
	}
}

func TestMessagesAndPingPong(t *testing.T) {
	rm := obs.NewRecorder()
	s, p, rec := openSession(t, Options{Meter: rm})

	p.send(OpText, true, []byte("hi"))
	if m := rec.message(t); !m.IsText() || m.Text() != "hi" {
		t.Fatalf("message = %+v", m)
	}
	p.send(OpBinary, true, []byte{0, 1, 2})
	if m := rec.message(t); m.Type != OpBinary || !bytes.Equal(m.Data, []byte{0, 1, 2}) {
		t.Fatalf("message = %+v", m)
	}

	p.send(OpPing, true, []byte("abc"))
	if f := p.read(); f.Opcode != OpPong || string(f.Payload) != "abc" {
		t.Fatalf("pong = %+v", f)
	}
	p.send(OpPong, true, []byte("x"))

	go func() { _ = s.SendText("out") }()
	if f := p.read(); f.Opcode != OpText || !f.Fin || string(f.Payload) != "out" {
		t.Fatalf("sent frame = %+v", f)
	}

	_ = p.nc.Close()
	waitDone(t, s)
	events, closes := rec.snapshot()
	if closes != 1 || events[1] != "pong x" || !strings.HasPrefix(events[2], "close 1006 ") {
		t.Fatalf("events = %v", events)
	}
	if rm.Count("wsx_frames_total{dir=in,op=text}") != 1 || rm.Count("wsx_frames_total{dir=out,op=pong}") != 1 {
		t.Fatalf("frame counters = %v", rm.Snapshot())
	}
}

func TestOversizedPingFailsWith1002(t *testing.T) {
	s, p, rec := openSession(t, Options{})
	p.send(OpPing, true, bytes.Repeat([]byte("p"), 200))

	f := p.read()
	code, reason, ok := DecodeClose(f.Payload)
	if f.Opcode != OpClose || !ok || code != CloseProtocolError || reason != "Protocol Error" {
		t.Fatalf("close = %+v", f)
	}
	waitDone(t, s)
	if events, _ := rec.snapshot(); events[len(events)-1] != "close 1002 Protocol Error" {
		t.Fatalf("events = %v", events)
	}
}

func TestFragmentedMessageIsReassembled(t *testing.T) {
	s, p, rec := openSession(t, Options{})
	p.send(OpText, false, []byte("Hel"))
	p.send(OpPing, true, []byte("mid"))
	if f := p.read(); f.Opcode != OpPong {
		t.Fatalf("expected pong between fragments, got %+v", f)
	}
	p.send(OpContinuation, false, []byte("l"))
	p.send(OpContinuation, true, []byte("o"))
	if m := rec.message(t); m.Text() != "Hello" {
		t.Fatalf("message = %q", m.Data)
	}
	_ = p.nc.Close()
	waitDone(t, s)
}

func TestProtocolViolations(t *testing.T) {
	cases := []struct {
		name   string
		frames []*Frame
		code   int
	}{
		{"stray continuation", []*Frame{{Fin: true, Opcode: OpContinuation, Payload: []byte("x")}}, CloseProtocolError},
		{"data inside fragment", []*Frame{{Opcode: OpText, Payload: []byte("a")}, {Fin: true, Opcode: OpText, Payload: []byte("b")}}, CloseProtocolError},
		{"fragmented control", []*Frame{{Opcode: OpPing}}, CloseProtocolError},
		{"reserved bit", []*Frame{{Fin: true, Rsv1: true, Opcode: OpText}}, CloseProtocolError},
		{"unknown opcode", []*Frame{{Fin: true, Opcode: 0x3}}, CloseProtocolError},
		{"bad utf8", []*Frame{{Fin: true, Opcode: OpText, Payload: []byte{0xff, 0xfe}}}, CloseInvalidPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, p, rec := openSession(t, Options{})
			for _, f := range tc.frames {
				if err := WriteFrame(p.nc, f); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			f := p.read()
			if code, _, _ := DecodeClose(f.Payload); f.Opcode != OpClose || code != tc.code {
				t.Fatalf("close frame = %+v", f)
			}
			waitDone(t, s)
			if _, closes := rec.snapshot(); closes != 1 {
				t.Fatalf("OnClose fired %d times", closes)
			}
		})
	}
}

func TestMessageTooBig(t *testing.T) {
	s, p, _ := openSession(t, Options{MaxMessageSize: 10})
	p.send(OpBinary, true, make([]byte, 11))
	if code, _, _ := DecodeClose(p.read().Payload); code != CloseMessageTooBig {
		t.Fatalf("code = %d", code)
	}
	waitDone(t, s)

	s, p, _ = openSession(t, Options{MaxMessageSize: 10})
	p.send(OpText, false, []byte("123456"))
	p.send(OpContinuation, true, []byte("789012"))
	if code, _, _ := DecodeClose(p.read().Payload); code != CloseMessageTooBig {
		t.Fatalf("reassembled code = %d", code)
	}
	waitDone(t, s)
}

func TestClientCloseHandshake(t *testing.T) {
	s, p, rec := openSession(t, Options{})
	got := make(chan *Frame, 1)
	go func() {
		f, err := ReadFrame(p.br, 0)
		if err != nil {
			close(got)
			return
		}
		got <- f
		_ = WriteFrame(p.nc, &Frame{Fin: true, Opcode: OpClose, Payload: f.Payload})
	}()

	if err := s.Close(CloseNormal, "done"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st := s.State(); st != Closing && st != Closed {
		t.Fatalf("state after Close = %s", st)
	}
	if err := s.SendText("x"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("send while closing = %v", err)
	}
	if err := s.Close(CloseNormal, ""); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("second close = %v", err)
	}
	f := <-got
	if f == nil || !bytes.Equal(f.Payload, []byte{0x03, 0xE8, 'd', 'o', 'n', 'e'}) {
		t.Fatalf("close frame = %+v", f)
	}
	waitDone(t, s)
	events, closes := rec.snapshot()
	if closes != 1 || events[len(events)-1] != "close 1000 done" {
		t.Fatalf("events = %v", events)
	}
}

func TestCloseTimeoutDropsConnection(t *testing.T) {
	s, p, rec := openSession(t, Options{CloseTimeout: 50 * time.Millisecond})
	go func() { _, _ = ReadFrame(p.br, 0) }()
	if err := s.Close(CloseGoingAway, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitDone(t, s)
	events, closes := rec.snapshot()
	if closes != 1 || !strings.HasPrefix(events[len(events)-1], "close 1006 ") {
		t.Fatalf("events = %v", events)
	}
}

func TestSendValidation(t *testing.T) {
	s, p, _ := openSession(t, Options{})
	if err := s.Send(Message{Type: OpClose}); !errors.Is(err, ErrProtocol) {
		t.Fatalf("send close opcode = %v", err)
	}
	if err := s.Ping(make([]byte, 126)); !errors.Is(err, ErrProtocol) {
		t.Fatalf("large ping = %v", err)
	}
	_ = p.nc.Close()
	waitDone(t, s)
}

func TestHandshakeRequestAndResult(t *testing.T) {
	conn, _, lines := startPipe(t, switching(
		"Sec-WebSocket-Protocol: chat\r\nSec-WebSocket-Extensions: permessage-deflate; client_max_window_bits=10, x-foo\r\n"))
	hs, err := Handshake(conn, httpx.NewHeader("Sec-WebSocket-Protocol", "chat", "Sec-WebSocket-Version", "13"))
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	req := <-lines
	if req[0] != "GET /chat HTTP/1.1" || req[1] != "Host: example.com" {
		t.Fatalf("request = %q", req)
	}
	want := map[string]bool{"connection: Upgrade": true, "upgrade: websocket": true, "sec-websocket-version: 13": true, "sec-websocket-protocol: chat": true}
	for _, l := range req[2:] {
		delete(want, l)
	}
	if len(want) != 0 {
		t.Fatalf("missing request lines %v in %q", want, req)
	}
	if hs.Subprotocol != "chat" || hs.Response.StatusCode != 101 {
		t.Fatalf("result = %+v", hs)
	}
	if len(hs.Extensions) != 2 || hs.Extensions[0].Name != "permessage-deflate" ||
		hs.Extensions[0].Params["client_max_window_bits"] != "10" || hs.Extensions[1].Name != "x-foo" {
		t.Fatalf("extensions = %+v", hs.Extensions)
	}
	if hs.Header.Get("sec-websocket-accept") != hs.AcceptKey {
		t.Fatalf("accept key mismatch")
	}
}

func TestHandshakeRejected(t *testing.T) {
	conn, _, _ := startPipe(t, func(string) string {
		return "HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n"
	})
	_, err := Handshake(conn, httpx.Header{})
	var he *HandshakeRejectedError
	if !errors.As(err, &he) || !errors.Is(err, ErrHandshakeRejected) || he.Status != 403 || he.Reason != "Forbidden" {
		t.Fatalf("err = %v", err)
	}
	if !conn.Closed() {
		t.Fatalf("conn should be closed after rejection")
	}
}

func TestAcceptKey(t *testing.T) {
	// RFC 6455 section 1.3.
	if got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("AcceptKey = %q", got)
	}
}
