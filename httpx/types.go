package httpx

import (
	"strings"

	"dqx0.com/go/wireclient/httpx/internal/http1"
)

// Header is a case-insensitive multimap of header fields. Names are
// stored lower-cased and keep the order in which they were first added;
// values for one name keep their insertion order.
//
// The zero value is an empty Header ready to use. Copying a Header shares
// its storage; use Clone for an independent copy.
type Header struct {
	names  []string
	values map[string][]string
}

// NewHeader returns a Header holding the given name/value pairs.
// It panics if kv has an odd length.
func NewHeader(kv ...string) Header {
	if len(kv)%2 != 0 {
		panic("httpx: NewHeader needs name/value pairs")
	}
	var h Header
	for i := 0; i < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}
	return h
}

func (h *Header) Get(name string) string {
	if vv := h.values[key(name)]; len(vv) > 0 {
		return vv[0]
	}
	return ""
}

// Values returns all values for name in insertion order.
func (h *Header) Values(name string) []string {
	return h.values[key(name)]
}

func (h *Header) Has(name string) bool {
	_, ok := h.values[key(name)]
	return ok
}

func (h *Header) Add(name, value string) {
	k := key(name)
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	if _, ok := h.values[k]; !ok {
		h.names = append(h.names, k)
	}
	h.values[k] = append(h.values[k], value)
}

// Set replaces the values for name, keeping its original position.
func (h *Header) Set(name, value string) {
	k := key(name)
	if _, ok := h.values[k]; ok {
		h.values[k] = []string{value}
		return
	}
	h.Add(k, value)
}

func (h *Header) Del(name string) {
	k := key(name)
	if _, ok := h.values[k]; !ok {
		return
	}
	delete(h.values, k)
	for i, n := range h.names {
		if n == k {
			h.names = append(h.names[:i:i], h.names[i+1:]...)
			break
		}
	}
}

// Names returns the lower-cased names in order.
func (h *Header) Names() []string {
	return append([]string(nil), h.names...)
}

// Len is the number of distinct names.
func (h *Header) Len() int { return len(h.names) }

// Range calls fn for every name/value pair in wire order until fn
// returns false.
func (h *Header) Range(fn func(name, value string) bool) {
	for _, n := range h.names {
		for _, v := range h.values[n] {
			if !fn(n, v) {
				return
			}
		}
	}
}

func (h *Header) Clone() Header {
	var c Header
	h.Range(func(n, v string) bool {
		c.Add(n, v)
		return true
	})
	return c
}

// Merge adds every field of o, replacing names that h already has.
func (h *Header) Merge(o Header) {
	for _, n := range o.names {
		h.Del(n)
		for _, v := range o.values[n] {
			h.Add(n, v)
		}
	}
}

// Map returns a copy as a plain map, losing name order.
func (h *Header) Map() map[string][]string {
	m := make(map[string][]string, len(h.names))
	for _, n := range h.names {
		m[n] = append([]string(nil), h.values[n]...)
	}
	return m
}

func (h *Header) fields() []http1.Field {
	var out []http1.Field
	h.Range(func(n, v string) bool {
		out = append(out, http1.Field{Name: n, Value: v})
		return true
	})
	return out
}

func headerFromFields(ff []http1.Field) Header {
	var h Header
	for _, f := range ff {
		h.Add(f.Name, f.Value)
	}
	return h
}

func key(name string) string {
	return strings.ToLower(name)
}
