package http1

import "errors"

// Response head errors.
var (
	ErrStreamEnd          = errors.New("http1: stream ended before end of response head")
	ErrMalformedResponse  = errors.New("http1: malformed response")
	ErrHeaderTooLarge     = errors.New("http1: response head too large")
	ErrInvalidHeader      = errors.New("http1: invalid request header")
	ErrInvalidRequestLine = errors.New("http1: invalid request line")
)

// Body errors.
var (
	ErrMalformedChunk = errors.New("http1: malformed chunk")
	ErrUnexpectedEOF  = errors.New("http1: unexpected end of body")
)
