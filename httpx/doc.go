// Package httpx is a small HTTP/1.1 client that speaks the protocol
// directly over a TCP or TLS socket.
//
// A Conn carries exactly one exchange: the request head and body are
// written, the response head is parsed, and the body is exposed as a
// stream framed by content-length, chunked transfer coding, or, after a
// protocol upgrade, the raw bytes that follow the head. Reaching the end
// of a framed body, or closing it, closes the socket.
//
// Header keeps field names lower-cased and preserves insertion order, so
// requests go out exactly in the order they were built.
//
// Quick start:
//
//	c := &httpx.Client{Timeout: 5 * time.Second}
//	res := c.Execute(ctx, "GET", "http://127.0.0.1:8080/", httpx.Header{}, nil)
//	if res.Err != nil { log.Fatal(res.Err) }
//	fmt.Println(res.StatusCode, string(res.Body))
//
// Lower level:
//
//	conn, err := httpx.Dial(ctx, "http://127.0.0.1:8080/ws", httpx.DialOptions{})
//	resp, err := conn.Execute(&httpx.Request{Method: "GET", Header: h})
//	// resp.Body streams from the socket; resp.Upgraded() after a 101.
package httpx
