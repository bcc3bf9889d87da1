package wsx

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrUnexpectedEOF = errors.New("wsx: unexpected end of stream inside a frame")
	ErrFrameTooLarge = errors.New("wsx: frame payload too large")
)

type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// IsControl reports whether o is close, ping, pong or a reserved control
// opcode.
func (o Opcode) IsControl() bool { return o&0x8 != 0 }

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	}
	return fmt.Sprintf("opcode(%#x)", byte(o))
}

// Frame is one RFC 6455 frame. Payload is always the unmasked data; the
// mask is applied on the wire only.
type Frame struct {
	Fin     bool
	Rsv1    bool
	Rsv2    bool
	Rsv3    bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

// NewFrame returns a final, client-masked frame with a fresh mask key.
func NewFrame(op Opcode, payload []byte) *Frame {
	return &Frame{Fin: true, Opcode: op, Masked: true, MaskKey: NewMaskKey(), Payload: payload}
}

// NewMaskKey returns four bytes from crypto/rand.
func NewMaskKey() [4]byte {
	var k [4]byte
	if _, err := rand.Read(k[:]); err != nil {
		panic("wsx: crypto/rand failed: " + err.Error())
	}
	return k
}

// AppendFrame appends the wire form of f to dst. f.Payload is not
// modified.
func AppendFrame(dst []byte, f *Frame) []byte {
	b0 := byte(f.Opcode & 0x0F)
	if f.Fin {
		b0 |= 0x80
	}
	if f.Rsv1 {
		b0 |= 0x40
	}
	if f.Rsv2 {
		b0 |= 0x20
	}
	if f.Rsv3 {
		b0 |= 0x10
	}
	var b1 byte
	if f.Masked {
		b1 = 0x80
	}
	n := len(f.Payload)
	switch {
	case n <= 125:
		dst = append(dst, b0, b1|byte(n))
	case n <= 0xFFFF:
		dst = append(dst, b0, b1|126)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, b0, b1|127)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}
	if !f.Masked {
		return append(dst, f.Payload...)
	}
	dst = append(dst, f.MaskKey[:]...)
	start := len(dst)
	dst = append(dst, f.Payload...)
	maskBytes(f.MaskKey, dst[start:])
	return dst
}

// WriteFrame writes f with a single Write call.
func WriteFrame(w io.Writer, f *Frame) error {
	_, err := w.Write(AppendFrame(nil, f))
	return err
}

// ReadFrame reads one frame from r. A clean end of stream before the
// first byte is io.EOF; an end anywhere later is ErrUnexpectedEOF.
// maxPayload <= 0 disables the size limit.
func ReadFrame(r io.Reader, maxPayload int64) (*Frame, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:2]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, readErr(err)
	}
	f := &Frame{
		Fin:    hdr[0]&0x80 != 0,
		Rsv1:   hdr[0]&0x40 != 0,
		Rsv2:   hdr[0]&0x20 != 0,
		Rsv3:   hdr[0]&0x10 != 0,
		Opcode: Opcode(hdr[0] & 0x0F),
		Masked: hdr[1]&0x80 != 0,
	}
	var n uint64
	switch l := hdr[1] & 0x7F; l {
	case 126:
		if _, err := io.ReadFull(r, hdr[:2]); err != nil {
			return nil, readErr(err)
		}
		n = uint64(binary.BigEndian.Uint16(hdr[:2]))
	case 127:
		if _, err := io.ReadFull(r, hdr[:8]); err != nil {
			return nil, readErr(err)
		}
		n = binary.BigEndian.Uint64(hdr[:8])
		if n>>63 != 0 {
			return nil, fmt.Errorf("%w: length has the most significant bit set", ErrFrameTooLarge)
		}
	default:
		n = uint64(l)
	}
	if maxPayload > 0 && n > uint64(maxPayload) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxPayload)
	}
	if n > math.MaxInt {
		return nil, fmt.Errorf("%w: %d does not fit in memory", ErrFrameTooLarge, n)
	}
	if f.Masked {
		if _, err := io.ReadFull(r, f.MaskKey[:]); err != nil {
			return nil, readErr(err)
		}
	}
	p, err := readPayload(r, int64(n))
	if err != nil {
		return nil, err
	}
	f.Payload = p
	if f.Masked {
		maskBytes(f.MaskKey, f.Payload)
	}
	return f, nil
}

// preallocLimit caps the buffer reserved from a declared length. Larger
// payloads grow with the bytes that actually arrive.
const preallocLimit = 1 << 20

func readPayload(r io.Reader, n int64) ([]byte, error) {
	if n <= preallocLimit {
		p := make([]byte, n)
		if _, err := io.ReadFull(r, p); err != nil {
			return nil, readErr(err)
		}
		return p, nil
	}
	var buf bytes.Buffer
	buf.Grow(preallocLimit)
	got, err := io.CopyN(&buf, r, n)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if got < n {
		return nil, ErrUnexpectedEOF
	}
	return buf.Bytes(), nil
}

func readErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrUnexpectedEOF
	}
	return err
}

func maskBytes(key [4]byte, p []byte) {
	for i := range p {
		p[i] ^= key[i&3]
	}
}
