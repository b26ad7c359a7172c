package http

import (
	"net/http"
	"strings"
)

// Header is a single name/value pair as it appears on the wire.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an insertion-ordered, case-insensitive header map. Names are
// stored lower-cased; setting an existing name replaces its value in place.
type Headers struct {
	entries []Header
}

func NewHeaders() *Headers {
	return &Headers{}
}

func (h *Headers) index(name string) int {
	name = strings.ToLower(name)
	for i, e := range h.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

func (h *Headers) Set(name, value string) *Headers {
	if i := h.index(name); i >= 0 {
		h.entries[i].Value = value
		return h
	}
	h.entries = append(h.entries, Header{Name: strings.ToLower(name), Value: value})
	return h
}

func (h *Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	if i := h.index(name); i >= 0 {
		return h.entries[i].Value
	}
	return ""
}

func (h *Headers) Has(name string) bool {
	return h != nil && h.index(name) >= 0
}

func (h *Headers) Del(name string) {
	if i := h.index(name); i >= 0 {
		h.entries = append(h.entries[:i], h.entries[i+1:]...)
	}
}

func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// List returns a copy of the entries in insertion order.
func (h *Headers) List() []Header {
	if h == nil {
		return nil
	}
	out := make([]Header, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *Headers) Clone() *Headers {
	return &Headers{entries: h.List()}
}

// Map flattens the headers for reporting.
func (h *Headers) Map() map[string]string {
	out := make(map[string]string, h.Len())
	for _, e := range h.List() {
		out[e.Name] = e.Value
	}
	return out
}

// apply copies the headers onto an outgoing net/http request. The host
// header is routed to req.Host because net/http ignores it in req.Header.
func (h *Headers) apply(req *http.Request) {
	for _, e := range h.List() {
		if e.Name == "host" {
			req.Host = e.Value
			continue
		}
		req.Header.Set(e.Name, e.Value)
	}
}
