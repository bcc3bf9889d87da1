package wsx

import "unicode/utf8"

// Message is one complete, reassembled data message.
type Message struct {
	Type Opcode // OpText or OpBinary
	Data []byte
}

func (m Message) IsText() bool { return m.Type == OpText }

func (m Message) Text() string { return string(m.Data) }

func (m Message) validUTF8() bool { return m.Type != OpText || utf8.Valid(m.Data) }

// Handler receives session events. All calls come from the session's
// receive goroutine, OnOpen first and OnClose exactly once, last.
type Handler interface {
	OnOpen(s *Session)
	OnMessage(s *Session, m Message)
	OnClose(s *Session, code int, reason string)
}

// PongHandler is implemented by handlers that want pong payloads.
type PongHandler interface {
	OnPong(s *Session, payload []byte)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Open    func(s *Session)
	Message func(s *Session, m Message)
	Close   func(s *Session, code int, reason string)
	Pong    func(s *Session, payload []byte)
}

func (h HandlerFuncs) OnOpen(s *Session) {
	if h.Open != nil {
		h.Open(s)
	}
}

func (h HandlerFuncs) OnMessage(s *Session, m Message) {
	if h.Message != nil {
		h.Message(s, m)
	}
}

func (h HandlerFuncs) OnClose(s *Session, code int, reason string) {
	if h.Close != nil {
		h.Close(s, code, reason)
	}
}

func (h HandlerFuncs) OnPong(s *Session, payload []byte) {
	if h.Pong != nil {
		h.Pong(s, payload)
	}
}
