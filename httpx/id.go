package httpx

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// genID returns a short random tag used to correlate log lines of one
// exchange.
func genID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	t := time.Now().UnixNano()
	for i := range b {
		b[i] = byte(t >> (uint(i) * 8))
	}
	return hex.EncodeToString(b[:])
}

// NewID is genID for other packages that tag their own log lines.
func NewID() string { return genID() }
