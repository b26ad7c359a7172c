package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{299, true},
		{300, false},
		{400, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.statusCode}
		assert.Equal(t, tt.expected, resp.IsSuccess(), "StatusCode: %d", tt.statusCode)
	}
}

func TestResponse_IsJSON(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/problem+json", true},
		{"text/html", false},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		resp := &Response{Headers: http.Header{"Content-Type": {tt.contentType}}}
		assert.Equal(t, tt.expected, resp.IsJSON(), "Content-Type: %s", tt.contentType)
	}
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		contentType string
		expected    string
	}{
		{"", "utf-8"},
		{"application/json", "utf-8"},
		{"text/html; charset=UTF-8", "utf-8"},
		{"text/plain; charset=latin1", "windows-1252"},
		{"text/plain; charset=shift_jis", "shift_jis"},
		{"text/plain; charset=made-up", "utf-8"},
		{"not a media type;;", "utf-8"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DetectEncoding(tt.contentType), "Content-Type: %q", tt.contentType)
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "body.bin")

	sink, err := NewFileSink(target)
	require.NoError(t, err)
	_, err = sink.Write([]byte("data"))
	require.NoError(t, err)

	_, err = os.Stat(target)
	assert.True(t, errors.Is(err, os.ErrNotExist), "nothing at the final path before commit")

	require.NoError(t, sink.Commit())
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
	assert.Equal(t, target, sink.Location())
}

func TestFileSink_Abort(t *testing.T) {
	dir := t.TempDir()

	sink, err := FileSinks(dir)()
	require.NoError(t, err)
	_, err = sink.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, sink.Abort())
	require.NoError(t, sink.Abort())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFileSink_CommitFailureRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "body.bin")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "occupied"), 0o755))

	sink, err := NewFileSink(target)
	require.NoError(t, err)
	_, err = sink.Write([]byte("data"))
	require.NoError(t, err)

	assert.Error(t, sink.Commit())
	require.NoError(t, sink.Abort())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "body.bin", files[0].Name())
}

func TestClient_SinkCommitFailureLeavesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "out.body")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "occupied"), 0o755))

	result, err := NewClient(WithSinks(FileSinkAt(target))).Execute(context.Background(), NewRequest("GET", server.URL))

	require.Error(t, err)
	assert.Equal(t, 1, result.Timeline.Len())
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "out.body", files[0].Name())
}

func TestTimeline_EntriesAreCopies(t *testing.T) {
	tl := NewTimeline()
	headers := []Header{{Name: "a", Value: "1"}}
	tl.Append(TimelineEntry{Timestamp: time.Now(), RequestHeaders: headers, ResponseHeaders: http.Header{"X": {"1"}}})

	headers[0].Value = "changed"
	got := tl.Entries()
	got[0].ResponseHeaders.Set("X", "2")

	again, ok := tl.Last()
	require.True(t, ok)
	assert.Equal(t, "1", again.RequestHeaders[0].Value)
	assert.Equal(t, "1", again.ResponseHeaders.Get("X"))
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{nil, ""},
		{&InvalidURLError{URL: "x"}, KindInvalidURL},
		{&AuthConfigurationError{Mode: AuthDigest, Reason: "missing username"}, KindAuthConfiguration},
		{&NetworkError{Method: "GET", URL: "http://x", Err: errors.New("refused")}, KindNetwork},
		{&RedirectLimitExceededError{Max: 1, URL: "http://x"}, KindRedirectLimit},
		{&CancelledError{}, KindCancelled},
		{fmt.Errorf("wrapped: %w", ErrBodyAlreadyConsumed), KindBodyConsumed},
		{errors.New("other"), KindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, ErrorKind(tt.err), "%v", tt.err)
	}
}
