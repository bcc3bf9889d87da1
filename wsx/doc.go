// Package wsx is a client for RFC 6455 WebSockets built on the raw
// connections of package httpx.
//
// Dial performs the upgrade handshake and returns a Session whose
// receive goroutine reports events to a Handler:
//
//	s, err := wsx.Dial(ctx, "ws://127.0.0.1:8080/echo", httpx.Header{}, wsx.HandlerFuncs{
//		Message: func(s *wsx.Session, m wsx.Message) { fmt.Println(m.Text()) },
//	}, wsx.Options{})
//	if err != nil { log.Fatal(err) }
//	_ = s.SendText("hello")
//	_ = s.Close(wsx.CloseNormal, "bye")
//	<-s.Done()
//
// Every client frame is masked with a fresh key. Fragmented messages are
// reassembled before delivery; control frames may arrive in between.
package wsx
