package wsx

import (
	"context"

	"dqx0.com/go/wireclient/httpx"
)

// Dial connects to a ws:// or wss:// URL, performs the upgrade and starts
// a session. header holds extra handshake fields, for example
// sec-websocket-protocol or authorization.
func Dial(ctx context.Context, url string, header httpx.Header, handler Handler, opts Options) (*Session, error) {
	dopts := opts.Dial
	if dopts.Logger == nil {
		dopts.Logger = opts.Logger
	}
	conn, err := httpx.Dial(ctx, url, dopts)
	if err != nil {
		return nil, err
	}
	hs, err := Handshake(conn, header)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return NewSession(hs, handler, opts), nil
}
