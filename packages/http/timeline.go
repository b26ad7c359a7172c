package http

import (
	"net/http"
	"sync"
	"time"
)

// TimelineEntry records one attempt. Entries are copied in and out of the
// Timeline, so a stored entry never changes.
type TimelineEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	RequestMethod string    `json:"method"`
	RequestURL    string    `json:"url"`
	// RequestHeaders are the headers as sent, after every interceptor ran.
	RequestHeaders  []Header      `json:"requestHeaders"`
	ResponseHeaders http.Header   `json:"responseHeaders,omitempty"`
	StatusCode      int           `json:"statusCode,omitempty"`
	Info            string        `json:"info,omitempty"`
	Error           string        `json:"error,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Timeline is the append-only attempt log of one logical request.
type Timeline struct {
	mu      sync.Mutex
	entries []TimelineEntry
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

func (t *Timeline) Append(e TimelineEntry) {
	e.RequestHeaders = append([]Header(nil), e.RequestHeaders...)
	e.ResponseHeaders = e.ResponseHeaders.Clone()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// Entries returns a copy of the entries in chronological order.
func (t *Timeline) Entries() []TimelineEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TimelineEntry, len(t.entries))
	for i, e := range t.entries {
		e.RequestHeaders = append([]Header(nil), e.RequestHeaders...)
		e.ResponseHeaders = e.ResponseHeaders.Clone()
		out[i] = e
	}
	return out
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Last returns the most recent entry.
func (t *Timeline) Last() (TimelineEntry, bool) {
	entries := t.Entries()
	if len(entries) == 0 {
		return TimelineEntry{}, false
	}
	return entries[len(entries)-1], true
}
