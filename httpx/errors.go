package httpx

import (
	"errors"
	"fmt"

	"dqx0.com/go/wireclient/httpx/internal/http1"
)

var (
	ErrConnect      = errors.New("httpx: connect failed")
	ErrMalformedURL = errors.New("httpx: malformed URL")
	ErrConnClosed   = errors.New("httpx: connection closed")
	ErrNilRequest   = errors.New("httpx: nil request")
)

// Wire errors, shared with the internal codec so errors.Is works across
// the package boundary.
var (
	ErrStreamEnd          = http1.ErrStreamEnd
	ErrMalformedResponse  = http1.ErrMalformedResponse
	ErrHeaderTooLarge     = http1.ErrHeaderTooLarge
	ErrInvalidHeader      = http1.ErrInvalidHeader
	ErrInvalidRequestLine = http1.ErrInvalidRequestLine
	ErrMalformedChunk     = http1.ErrMalformedChunk
	ErrUnexpectedEOF      = http1.ErrUnexpectedEOF
)

// ConnectError reports a DNS, TCP or TLS handshake failure.
type ConnectError struct {
	Addr string
	TLS  bool
	Err  error
}

func (e *ConnectError) Error() string {
	stage := "tcp"
	if e.TLS {
		stage = "tls"
	}
	return fmt.Sprintf("httpx: connect %s (%s): %v", e.Addr, stage, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool { return target == ErrConnect }
