package wsx

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"dqx0.com/go/wireclient/httpx"
	"dqx0.com/go/wireclient/internal/obs"
)

var (
	ErrSessionClosed = errors.New("wsx: session is not open")
	ErrProtocol      = errors.New("wsx: protocol error")
)

const (
	DefaultCloseTimeout   = 5 * time.Second
	DefaultMaxMessageSize = 16 << 20
)

type State int32

const (
	Connecting State = iota
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return "unknown"
}

type Options struct {
	// CloseTimeout is how long Close waits for the server's close frame
	// before dropping the socket.
	CloseTimeout time.Duration
	// ReadTimeout bounds each socket read. Zero blocks forever.
	ReadTimeout time.Duration
	// MaxMessageSize limits a frame payload and a reassembled message.
	MaxMessageSize int64
	Logger         obs.Logger
	Meter          obs.Meter
	// Dial configures the underlying connection for Dial.
	Dial httpx.DialOptions
}

func (o Options) closeTimeout() time.Duration {
	if o.CloseTimeout <= 0 {
		return DefaultCloseTimeout
	}
	return o.CloseTimeout
}

func (o Options) maxMessageSize() int64 {
	if o.MaxMessageSize <= 0 {
		return DefaultMaxMessageSize
	}
	return o.MaxMessageSize
}

// Session is a client WebSocket session. Send and Close may be called
// from any goroutine; frames are written whole and in call order.
type Session struct {
	id      string
	conn    *httpx.Conn
	r       io.Reader
	hs      *HandshakeResult
	handler Handler
	opts    Options

	wmu sync.Mutex // held across a state check and the frame write

	mu         sync.Mutex
	state      State
	closeSent  bool
	closeTimer *time.Timer

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession takes over the connection of a successful handshake, moves
// to Open and starts the receive goroutine. handler.OnOpen runs on that
// goroutine before any message.
func NewSession(hs *HandshakeResult, handler Handler, opts Options) *Session {
	if handler == nil {
		handler = HandlerFuncs{}
	}
	s := &Session{
		id:      httpx.NewID(),
		conn:    hs.Conn,
		r:       hs.Stream,
		hs:      hs,
		handler: handler,
		opts:    opts,
		state:   Connecting,
		done:    make(chan struct{}),
	}
	s.conn.SetReadTimeout(opts.ReadTimeout)
	s.setState(Open)
	s.logf(obs.Info, "open %s", hs.Conn.Target().Host)
	go s.readLoop()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Handshake() *HandshakeResult { return s.hs }

func (s *Session) Subprotocol() string { return s.hs.Subprotocol }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches Closed and OnClose returned.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Closed() bool { return s.State() == Closed }

func (s *Session) Send(m Message) error {
	if m.Type != OpText && m.Type != OpBinary {
		return fmt.Errorf("%w: cannot send %s as a message", ErrProtocol, m.Type)
	}
	return s.writeIfOpen(m.Type, m.Data)
}

func (s *Session) SendText(text string) error { return s.writeIfOpen(OpText, []byte(text)) }

func (s *Session) SendBinary(data []byte) error { return s.writeIfOpen(OpBinary, data) }

func (s *Session) Ping(payload []byte) error {
	if len(payload) > 125 {
		return fmt.Errorf("%w: ping payload of %d bytes", ErrProtocol, len(payload))
	}
	return s.writeIfOpen(OpPing, payload)
}

// Close sends a close frame and moves to Closing. The socket is closed
// when the server answers or after CloseTimeout, whichever comes first.
func (s *Session) Close(code int, reason string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.mu.Lock()
	if s.state != Open {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.state = Closing
	s.closeSent = true
	s.closeTimer = time.AfterFunc(s.opts.closeTimeout(), func() {
		s.logf(obs.Warn, "no close reply within %s, dropping connection", s.opts.closeTimeout())
		_ = s.conn.Close()
	})
	s.mu.Unlock()

	s.logf(obs.Debug, "closing with %d %q", code, reason)
	if err := s.writeFrame(OpClose, EncodeClose(code, reason)); err != nil {
		_ = s.conn.Close()
		return err
	}
	return nil
}

func (s *Session) writeIfOpen(op Opcode, p []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.State() != Open {
		return ErrSessionClosed
	}
	return s.writeFrame(op, p)
}

// writeFrame expects wmu to be held.
func (s *Session) writeFrame(op Opcode, p []byte) error {
	err := WriteFrame(s.conn, NewFrame(op, p))
	if err == nil {
		s.count("wsx_frames_total", obs.Label{Key: "dir", Value: "out"}, obs.Label{Key: "op", Value: op.String()})
	}
	return err
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) readLoop() {
	s.handler.OnOpen(s)
	code, reason := s.receive()
	s.shutdown(code, reason)
}

// receive processes frames until the session ends and returns what
// OnClose should report.
func (s *Session) receive() (int, string) {
	limit := s.opts.maxMessageSize()
	var (
		fragType Opcode
		frag     []byte
		inFrag   bool
	)
	for {
		f, err := ReadFrame(s.r, limit)
		if err != nil {
			if errors.Is(err, ErrFrameTooLarge) {
				return s.fail(CloseMessageTooBig, "Message Too Big")
			}
			s.logf(obs.Debug, "read: %v", err)
			return CloseAbnormal, err.Error()
		}
		s.count("wsx_frames_total", obs.Label{Key: "dir", Value: "in"}, obs.Label{Key: "op", Value: f.Opcode.String()})

		if f.Rsv1 || f.Rsv2 || f.Rsv3 {
			return s.fail(CloseProtocolError, "Protocol Error")
		}
		if f.Opcode.IsControl() && (!f.Fin || len(f.Payload) > 125) {
			return s.fail(CloseProtocolError, "Protocol Error")
		}

		switch f.Opcode {
		case OpClose:
			return s.closeReceived(f.Payload)
		case OpPing:
			if err := s.writeIfOpen(OpPong, f.Payload); err != nil && !errors.Is(err, ErrSessionClosed) {
				s.logf(obs.Warn, "pong: %v", err)
			}
		case OpPong:
			if ph, ok := s.handler.(PongHandler); ok {
				ph.OnPong(s, f.Payload)
			}
		case OpText, OpBinary:
			if inFrag {
				return s.fail(CloseProtocolError, "Protocol Error")
			}
			if !f.Fin {
				fragType, frag, inFrag = f.Opcode, f.Payload, true
				continue
			}
			if code, reason, ok := s.deliver(Message{Type: f.Opcode, Data: f.Payload}); !ok {
				return code, reason
			}
		case OpContinuation:
			if !inFrag {
				return s.fail(CloseProtocolError, "Protocol Error")
			}
			if int64(len(frag))+int64(len(f.Payload)) > limit {
				return s.fail(CloseMessageTooBig, "Message Too Big")
			}
			frag = append(frag, f.Payload...)
			if !f.Fin {
				continue
			}
			m := Message{Type: fragType, Data: frag}
			fragType, frag, inFrag = 0, nil, false
			if code, reason, ok := s.deliver(m); !ok {
				return code, reason
			}
		default:
			return s.fail(CloseProtocolError, "Protocol Error")
		}
	}
}

func (s *Session) deliver(m Message) (int, string, bool) {
	if !m.validUTF8() {
		code, reason := s.fail(CloseInvalidPayload, "Invalid UTF-8")
		return code, reason, false
	}
	s.handler.OnMessage(s, m)
	return 0, "", true
}

// closeReceived answers a server close frame with an echo unless we
// started the close ourselves.
func (s *Session) closeReceived(payload []byte) (int, string) {
	code, reason, ok := DecodeClose(payload)
	if !ok {
		code = NoStatus
	}
	s.wmu.Lock()
	s.mu.Lock()
	echo := !s.closeSent
	s.closeSent = true
	s.state = Closing
	s.mu.Unlock()
	if echo {
		if err := s.writeFrame(OpClose, payload); err != nil {
			s.logf(obs.Debug, "close echo: %v", err)
		}
	}
	s.wmu.Unlock()
	return code, reason
}

// fail sends a close frame with code, if none was sent yet, and ends the
// session without waiting for the reply.
func (s *Session) fail(code int, reason string) (int, string) {
	s.logf(obs.Warn, "failing session: %d %s", code, reason)
	s.wmu.Lock()
	s.mu.Lock()
	send := !s.closeSent
	s.closeSent = true
	s.state = Closing
	s.mu.Unlock()
	if send {
		_ = s.writeFrame(OpClose, EncodeClose(code, reason))
	}
	s.wmu.Unlock()
	return code, reason
}

func (s *Session) shutdown(code int, reason string) {
	s.closeOnce.Do(func() {
		s.handler.OnClose(s, code, reason)
	})
	_ = s.conn.Close()
	s.mu.Lock()
	s.state = Closed
	if s.closeTimer != nil {
		s.closeTimer.Stop()
	}
	s.mu.Unlock()
	s.count("wsx_sessions_closed_total", obs.Label{Key: "code", Value: strconv.Itoa(code)})
	s.logf(obs.Info, "closed: %d %s", code, reason)
	close(s.done)
}

func (s *Session) logf(level obs.Level, format string, args ...interface{}) {
	lg := s.opts.Logger
	if lg == nil {
		lg = s.conn.Logger()
	}
	lg.Logf(level, "ws[%s] "+format, append([]interface{}{s.id}, args...)...)
}

func (s *Session) count(name string, labels ...obs.Label) {
	if s.opts.Meter != nil {
		s.opts.Meter.Counter(name, 1, labels...)
	}
}
