package wsx

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gobwas/httphead"

	"dqx0.com/go/wireclient/httpx"
	"dqx0.com/go/wireclient/internal/obs"
)

const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var ErrHandshakeRejected = errors.New("wsx: handshake rejected")

// HandshakeRejectedError is returned when the server answers the upgrade
// request with anything but 101.
type HandshakeRejectedError struct {
	Status int
	Reason string
}

func (e *HandshakeRejectedError) Error() string {
	return fmt.Sprintf("wsx: server did not switch protocols: %d %s", e.Status, e.Reason)
}

func (e *HandshakeRejectedError) Is(target error) bool { return target == ErrHandshakeRejected }

// Extension is one negotiated sec-websocket-extensions entry.
type Extension struct {
	Name   string
	Params map[string]string
}

// HandshakeResult is what a successful upgrade leaves behind. Stream is
// the raw byte stream after the 101 head, including bytes the server sent
// right behind it.
type HandshakeResult struct {
	Conn        *httpx.Conn
	Response    *httpx.Response
	Header      httpx.Header
	Stream      io.Reader
	Subprotocol string
	Extensions  []Extension
	// AcceptKey is the sec-websocket-accept value the server should have
	// sent.
	AcceptKey string
}

// Handshake sends the upgrade request on conn. Fields in extra replace the
// default upgrade fields of the same name. On rejection conn is closed.
func Handshake(conn *httpx.Conn, extra httpx.Header) (*HandshakeResult, error) {
	lg := conn.Logger()
	h := httpx.NewHeader(
		"connection", "Upgrade",
		"upgrade", "websocket",
		"sec-websocket-key", newChallengeKey(),
		"sec-websocket-version", "13",
	)
	h.Merge(extra)

	resp, err := conn.Execute(&httpx.Request{Method: "GET", Header: h})
	if err != nil {
		return nil, fmt.Errorf("wsx: handshake: %w", err)
	}
	if resp.StatusCode != 101 {
		_ = conn.Close()
		lg.Logf(obs.Warn, "handshake to %s rejected: %s", conn.Target().Host, resp.Status)
		return nil, &HandshakeRejectedError{Status: resp.StatusCode, Reason: resp.Reason}
	}

	res := &HandshakeResult{
		Conn:        conn,
		Response:    resp,
		Header:      resp.Header,
		Stream:      conn,
		Subprotocol: resp.Header.Get("sec-websocket-protocol"),
		AcceptKey:   AcceptKey(h.Get("sec-websocket-key")),
	}
	if got := resp.Header.Get("sec-websocket-accept"); got != res.AcceptKey {
		lg.Logf(obs.Warn, "sec-websocket-accept mismatch: got %q, want %q", got, res.AcceptKey)
	}
	if !hasToken(resp.Header.Values("connection"), "upgrade") {
		lg.Logf(obs.Warn, "101 response without connection: upgrade")
	}
	res.Extensions = parseExtensions(resp.Header.Values("sec-websocket-extensions"), lg)
	return res, nil
}

// AcceptKey computes the sec-websocket-accept value for a challenge key.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func newChallengeKey() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("wsx: crypto/rand failed: " + err.Error())
	}
	return base64.StdEncoding.EncodeToString(b[:])
}

func hasToken(values []string, token string) bool {
	found := false
	for _, v := range values {
		httphead.ScanTokens([]byte(v), func(t []byte) bool {
			if strings.EqualFold(string(t), token) {
				found = true
				return false
			}
			return true
		})
	}
	return found
}

func parseExtensions(values []string, lg obs.Logger) []Extension {
	var opts []httphead.Option
	for _, v := range values {
		var ok bool
		opts, ok = httphead.ParseOptions([]byte(v), opts)
		if !ok {
			lg.Logf(obs.Warn, "unparsable sec-websocket-extensions %q", v)
		}
	}
	out := make([]Extension, 0, len(opts))
	for _, o := range opts {
		ext := Extension{Name: string(o.Name), Params: map[string]string{}}
		o.Parameters.ForEach(func(k, v []byte) bool {
			ext.Params[string(k)] = string(v)
			return true
		})
		out = append(out, ext)
	}
	return out
}
