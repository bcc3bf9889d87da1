package wsx

// Close codes from RFC 6455 section 7.4.1.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseUnsupportedData = 1003
	// NoStatus is reported when a close frame carried no code.
	NoStatus = 1005
	// CloseAbnormal is reported when the connection failed or ended
	// without a close frame. It is never sent on the wire.
	CloseAbnormal          = 1006
	CloseInvalidPayload    = 1007
	ClosePolicyViolation   = 1008
	CloseMessageTooBig     = 1009
	CloseInternalServerErr = 1011
)

// EncodeClose builds a close payload: the code in network byte order
// followed by the UTF-8 reason. Code 0 yields an empty payload.
func EncodeClose(code int, reason string) []byte {
	if code == 0 {
		return nil
	}
	p := make([]byte, 2, 2+len(reason))
	p[0] = byte(code >> 8)
	p[1] = byte(code & 0xFF)
	return append(p, reason...)
}

// DecodeClose splits a close payload. ok is false when the payload is too
// short to hold a code.
func DecodeClose(p []byte) (code int, reason string, ok bool) {
	if len(p) < 2 {
		return 0, "", false
	}
	return int(p[0])<<8 | int(p[1]), string(p[2:]), true
}
