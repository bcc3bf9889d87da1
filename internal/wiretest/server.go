// Package wiretest runs scripted loopback TCP peers for client tests.
// A handler sees the raw connection and decides byte by byte what the
// client gets back, which makes malformed and truncated responses easy
// to produce.
package wiretest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Handler scripts one accepted connection. The connection is closed when
// the handler returns.
type Handler interface {
	ServeConn(*Conn)
}

type HandlerFunc func(*Conn)

func (f HandlerFunc) ServeConn(c *Conn) { f(c) }

type Server struct {
	Handler Handler
	// ReadTimeout bounds every read the handler makes. Zero means 5s.
	ReadTimeout time.Duration

	ln    net.Listener
	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
	seen  [][]byte
}

// Start listens on a random loopback port and serves in the background.
func Start(h Handler) (*Server, error) {
	s := &Server{Handler: h}
	if err := s.Listen("127.0.0.1:0"); err != nil {
		return nil, err
	}
	go func() { _ = s.Serve() }()
	return s, nil
}

func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Serve runs the accept loop until the listener is closed.
func (s *Server) Serve() error {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return err
		}
		s.track(c, true)
		s.wg.Add(1)
		go s.serveConn(c)
	}
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

// URL returns scheme://addr + path.
func (s *Server) URL(scheme, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + s.Addr() + path
}

// Received returns, per finished connection, every byte the handler read.
func (s *Server) Received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.seen...)
}

// Close stops accepting, closes live connections and waits for handlers.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		s.conns = map[net.Conn]struct{}{}
	}
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

func (s *Server) serveConn(nc net.Conn) {
	defer s.wg.Done()
	rt := s.ReadTimeout
	if rt <= 0 {
		rt = 5 * time.Second
	}
	c := &Conn{nc: nc, timeout: rt}
	c.BR = bufio.NewReader(io.TeeReader(readerFunc(c.read), &c.log))
	defer func() {
		_ = nc.Close()
		s.track(nc, false)
		s.mu.Lock()
		s.seen = append(s.seen, append([]byte(nil), c.log.Bytes()...))
		s.mu.Unlock()
	}()
	if s.Handler != nil {
		s.Handler.ServeConn(c)
	}
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

// Conn is the server side of one client connection.
type Conn struct {
	BR *bufio.Reader

	nc      net.Conn
	timeout time.Duration
	log     bytes.Buffer
}

func (c *Conn) read(p []byte) (int, error) {
	_ = c.nc.SetReadDeadline(time.Now().Add(c.timeout))
	return c.nc.Read(p)
}

// Request is a parsed request head.
type Request struct {
	Method string
	Target string
	Proto  string
	Fields [][2]string // in wire order, names as sent
}

// Get returns the first value for name, compared case-insensitively.
func (r *Request) Get(name string) string {
	for _, f := range r.Fields {
		if strings.EqualFold(f[0], name) {
			return f[1]
		}
	}
	return ""
}

// ReadRequest reads a request head up to the blank line.
func (c *Conn) ReadRequest() (*Request, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("wiretest: bad request line %q", line)
	}
	r := &Request{Method: parts[0], Target: parts[1], Proto: parts[2]}
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return r, nil
		}
		i := strings.Index(line, ":")
		if i <= 0 {
			return nil, fmt.Errorf("wiretest: bad header line %q", line)
		}
		r.Fields = append(r.Fields, [2]string{line[:i], strings.TrimSpace(line[i+1:])})
	}
}

// ReadBody reads a content-length body. Requests without content-length
// have no body.
func (c *Conn) ReadBody(r *Request) ([]byte, error) {
	cl := r.Get("content-length")
	if cl == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(cl)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("wiretest: bad content-length %q", cl)
	}
	buf := make([]byte, n)
	_, err = io.ReadFull(c.BR, buf)
	return buf, err
}

// Drain reads until the client closes its side or the read times out.
func (c *Conn) Drain() []byte {
	b, _ := io.ReadAll(c.BR)
	return b
}

func (c *Conn) readLine() (string, error) {
	s, err := c.BR.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (c *Conn) Write(p []byte) (int, error) { return c.nc.Write(p) }

// Send writes s verbatim.
func (c *Conn) Send(s string) error {
	_, err := io.WriteString(c.nc, s)
	return err
}

// WriteChunk writes one chunk of a chunked body. An empty p writes the
// terminating chunk and final CRLF.
func (c *Conn) WriteChunk(p []byte) error {
	if len(p) == 0 {
		return c.Send("0\r\n\r\n")
	}
	if err := c.Send(strconv.FormatInt(int64(len(p)), 16) + "\r\n"); err != nil {
		return err
	}
	if _, err := c.Write(p); err != nil {
		return err
	}
	return c.Send("\r\n")
}

// CloseWrite half-closes the connection when the transport allows it.
func (c *Conn) CloseWrite() error {
	if tc, ok := c.nc.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return c.nc.Close()
}

// Reply returns a handler that reads one request (and its content-length
// body) and answers with raw verbatim.
func Reply(raw string) Handler {
	return HandlerFunc(func(c *Conn) {
		r, err := c.ReadRequest()
		if err != nil {
			return
		}
		if _, err := c.ReadBody(r); err != nil {
			return
		}
		_ = c.Send(raw)
	})
}

// Response formats a response with a content-length header.
func Response(status int, reason, body string, kv ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, reason)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, "%s: %s\r\n", kv[i], kv[i+1])
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n%s", len(body), body)
	return b.String()
}
