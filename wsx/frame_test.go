package wsx

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTripHello(t *testing.T) {
	in := &Frame{Fin: true, Opcode: OpText, Payload: []byte("hello")}
	wire := AppendFrame(nil, in)
	if want := []byte{0x81, 0x05, 'h', 'e', 'l', 'l', 'o'}; !bytes.Equal(wire, want) {
		t.Fatalf("wire = % x, want % x", wire, want)
	}
	out, err := ReadFrame(bytes.NewReader(wire), 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !out.Fin || out.Opcode != OpText || string(out.Payload) != "hello" || out.Masked {
		t.Fatalf("frame = %+v", out)
	}
}

func TestMaskedFrameLengths(t *testing.T) {
	cases := []struct {
		n      int
		header int
	}{
		{0, 2}, {1, 2}, {125, 2}, {126, 4}, {65535, 4}, {65536, 10},
	}
	for _, tc := range cases {
		payload := bytes.Repeat([]byte{0x5a}, tc.n)
		f := NewFrame(OpBinary, payload)
		wire := AppendFrame(nil, f)
		if got, want := len(wire), tc.header+4+tc.n; got != want {
			t.Fatalf("n=%d: wire length %d, want %d", tc.n, got, want)
		}
		if wire[1]&0x80 == 0 {
			t.Fatalf("n=%d: mask bit not set", tc.n)
		}
		if !bytes.Equal(payload, bytes.Repeat([]byte{0x5a}, tc.n)) {
			t.Fatalf("n=%d: caller payload modified", tc.n)
		}
		got, err := ReadFrame(bytes.NewReader(wire), 0)
		if err != nil {
			t.Fatalf("n=%d: read: %v", tc.n, err)
		}
		if !got.Masked || got.MaskKey != f.MaskKey || !bytes.Equal(got.Payload, payload) {
			t.Fatalf("n=%d: round trip mismatch", tc.n)
		}
	}
}

func TestMaskingIsXOR(t *testing.T) {
	f := &Frame{Fin: true, Opcode: OpText, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}, Payload: []byte("abcde")}
	wire := AppendFrame(nil, f)
	body := wire[6:]
	for i, c := range []byte("abcde") {
		if body[i] != c^f.MaskKey[i%4] {
			t.Fatalf("byte %d = %#x", i, body[i])
		}
	}
}

func TestMaskKeysDiffer(t *testing.T) {
	seen := map[[4]byte]bool{}
	for i := 0; i < 8; i++ {
		seen[NewMaskKey()] = true
	}
	if len(seen) < 2 {
		t.Fatalf("mask keys are not random: %v", seen)
	}
}

func TestRsvBitsAndOpcode(t *testing.T) {
	wire := AppendFrame(nil, &Frame{Rsv1: true, Rsv3: true, Opcode: OpContinuation})
	if wire[0] != 0x50 {
		t.Fatalf("byte 0 = %#x", wire[0])
	}
	f, err := ReadFrame(bytes.NewReader(wire), 0)
	if err != nil || f.Fin || !f.Rsv1 || f.Rsv2 || !f.Rsv3 {
		t.Fatalf("frame = %+v, %v", f, err)
	}
}

func TestReadFrameErrors(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader(nil), 0); err != io.EOF {
		t.Fatalf("empty stream: %v", err)
	}
	truncated := [][]byte{
		{0x81},
		{0x81, 0x05, 'h', 'e'},
		{0x82, 126, 0x01},
		{0x81, 0x85, 1, 2},
	}
	for _, b := range truncated {
		if _, err := ReadFrame(bytes.NewReader(b), 0); !errors.Is(err, ErrUnexpectedEOF) {
			t.Fatalf("% x: err = %v", b, err)
		}
	}
	msb := []byte{0x82, 127, 0x80, 0, 0, 0, 0, 0, 0, 1}
	if _, err := ReadFrame(bytes.NewReader(msb), 0); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("msb length: %v", err)
	}
	huge := []byte{0x82, 127, 0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 'x'}
	if _, err := ReadFrame(bytes.NewReader(huge), 0); !errors.Is(err, ErrUnexpectedEOF) && !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("63-bit length without a limit: %v", err)
	}
	big := AppendFrame(nil, &Frame{Fin: true, Opcode: OpBinary, Payload: make([]byte, 11)})
	if _, err := ReadFrame(bytes.NewReader(big), 10); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("over limit: %v", err)
	}
}

func TestReadFrameLargePayloadUnlimited(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 3<<16)
	b := AppendFrame(nil, &Frame{Fin: true, Opcode: OpBinary, Payload: payload})
	f, err := ReadFrame(bytes.NewReader(b), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatalf("payload of %d bytes differs", len(f.Payload))
	}
	if _, err := ReadFrame(bytes.NewReader(b[:len(b)-1]), 0); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("short payload: %v", err)
	}
}

func TestCloseCodec(t *testing.T) {
	if got := EncodeClose(1000, ""); !bytes.Equal(got, []byte{0x03, 0xE8}) {
		t.Fatalf("EncodeClose(1000) = % x", got)
	}
	if got := EncodeClose(1000, "bye"); !bytes.Equal(got, []byte{0x03, 0xE8, 'b', 'y', 'e'}) {
		t.Fatalf("EncodeClose(1000, bye) = % x", got)
	}
	if got := EncodeClose(4011, ""); !bytes.Equal(got, []byte{0x0F, 0xAB}) {
		t.Fatalf("low byte lost: % x", got)
	}
	if got := EncodeClose(0, "ignored"); len(got) != 0 {
		t.Fatalf("code 0 = % x", got)
	}
	code, reason, ok := DecodeClose([]byte{0x03, 0xF2, 'o', 'k'})
	if !ok || code != 1010 || reason != "ok" {
		t.Fatalf("DecodeClose = %d %q %v", code, reason, ok)
	}
	if _, _, ok := DecodeClose([]byte{0x03}); ok {
		t.Fatalf("short payload decoded")
	}
}

func TestOpcodeString(t *testing.T) {
	if OpPong.String() != "pong" || Opcode(0x3).String() != "opcode(0x3)" {
		t.Fatalf("unexpected names %q %q", OpPong, Opcode(0x3))
	}
	if !OpPing.IsControl() || OpBinary.IsControl() {
		t.Fatalf("IsControl wrong")
	}
}
