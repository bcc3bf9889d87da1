package httpx

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"dqx0.com/go/wireclient/internal/obs"
)

// DefaultDialTimeout bounds TCP connect plus TLS handshake when
// DialOptions.Timeout is zero.
const DefaultDialTimeout = 5 * time.Second

// DialOptions configures a single connection.
type DialOptions struct {
	// Timeout bounds DNS, TCP connect and the TLS handshake.
	Timeout time.Duration
	// ReadTimeout and WriteTimeout are applied before every socket
	// read and write. Zero means no deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// InsecureTLS disables certificate and hostname verification.
	// It is never turned on implicitly.
	InsecureTLS bool
	TLSConfig   *tls.Config
	// MaxHeadBytes limits the response status line plus headers.
	MaxHeadBytes int
	Logger       obs.Logger
}

// Conn is one client connection carrying exactly one request. After an
// upgrade response the connection becomes a raw byte stream owned by
// whoever took the response.
type Conn struct {
	target *Target
	nc     *deadlineConn
	br     *bufio.Reader
	bw     *bufio.Writer
	opts   DialOptions

	mu       sync.Mutex // guards the exchange below
	headSent bool
	executed bool
	resp     *Response
	err      error

	wmu    sync.Mutex // serializes raw writes
	closed atomic.Bool
}

// Dial parses rawURL and opens a TCP or TLS connection to it.
func Dial(ctx context.Context, rawURL string, opts DialOptions) (*Conn, error) {
	t, err := ParseTarget(rawURL)
	if err != nil {
		return nil, err
	}
	return DialTarget(ctx, t, opts)
}

// DialTarget opens a connection to an already parsed target.
func DialTarget(ctx context.Context, t *Target, opts DialOptions) (*Conn, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	var nc net.Conn
	var err error
	if t.TLS {
		td := tls.Dialer{NetDialer: &d, Config: tlsConfigFor(t, opts)}
		nc, err = td.DialContext(ctx, "tcp", t.Addr())
	} else {
		nc, err = d.DialContext(ctx, "tcp", t.Addr())
	}
	if err != nil {
		logf(opts.Logger, obs.Warn, "dial %s failed: %v", t.Addr(), err)
		return nil, &ConnectError{Addr: t.Addr(), TLS: t.TLS, Err: err}
	}
	logf(opts.Logger, obs.Debug, "connected to %s (tls=%v)", t.Addr(), t.TLS)
	return NewConn(nc, t, opts), nil
}

// NewConn wraps an established connection, for custom dialers and
// in-memory pipes. nc must already be TLS-wrapped if t.TLS is set.
func NewConn(nc net.Conn, t *Target, opts DialOptions) *Conn {
	dc := &deadlineConn{Conn: nc}
	dc.readTimeout.Store(int64(opts.ReadTimeout))
	dc.writeTimeout.Store(int64(opts.WriteTimeout))
	return &Conn{
		target: t,
		nc:     dc,
		br:     bufio.NewReader(dc),
		bw:     bufio.NewWriter(dc),
		opts:   opts,
	}
}

func tlsConfigFor(t *Target, opts DialOptions) *tls.Config {
	cfg := opts.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = t.Hostname
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"http/1.1"}
	}
	if opts.InsecureTLS {
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

func (c *Conn) Target() *Target { return c.target }

// Logger returns the connection's logger, never nil.
func (c *Conn) Logger() obs.Logger {
	if c.opts.Logger == nil {
		return obs.NopLogger{}
	}
	return c.opts.Logger
}

// Read reads raw bytes, including anything already buffered behind the
// response head.
func (c *Conn) Read(p []byte) (int, error) {
	return c.br.Read(p)
}

// Write writes p to the socket and flushes it. Concurrent writers are
// serialized so that each p reaches the wire contiguously.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrConnClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	n, err := c.bw.Write(p)
	if err != nil {
		return n, err
	}
	return n, c.bw.Flush()
}

// SetReadTimeout changes the per-read deadline for subsequent reads.
func (c *Conn) SetReadTimeout(d time.Duration) {
	c.nc.readTimeout.Store(int64(d))
	if d <= 0 {
		_ = c.nc.SetReadDeadline(time.Time{})
	}
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.nc.Close()
}

func (c *Conn) Closed() bool { return c.closed.Load() }

func (c *Conn) LocalAddr() net.Addr  { return c.nc.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// deadlineConn arms a fresh deadline before each read and write.
type deadlineConn struct {
	net.Conn
	readTimeout  atomic.Int64
	writeTimeout atomic.Int64
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	if to := time.Duration(d.readTimeout.Load()); to > 0 {
		_ = d.Conn.SetReadDeadline(time.Now().Add(to))
	}
	return d.Conn.Read(p)
}

func (d *deadlineConn) Write(p []byte) (int, error) {
	if to := time.Duration(d.writeTimeout.Load()); to > 0 {
		_ = d.Conn.SetWriteDeadline(time.Now().Add(to))
	}
	return d.Conn.Write(p)
}

func logf(lg obs.Logger, level obs.Level, format string, args ...interface{}) {
	if lg == nil {
		lg = obs.NopLogger{}
	}
	lg.Logf(level, format, args...)
}
