package history

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hithttp "github.com/abdul-hamid-achik/hitwire/packages/http"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite://" + filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SaveAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	timeline := []hithttp.TimelineEntry{
		{
			Timestamp:       start,
			RequestMethod:   "GET",
			RequestURL:      "http://example.com/one",
			RequestHeaders:  []hithttp.Header{{Name: "host", Value: "example.com"}},
			ResponseHeaders: http.Header{"Location": {"/two"}},
			StatusCode:      302,
			Info:            hithttp.InfoRedirect,
			Duration:        12 * time.Millisecond,
		},
		{
			Timestamp:     start.Add(20 * time.Millisecond),
			RequestMethod: "GET",
			RequestURL:    "http://example.com/two",
			StatusCode:    200,
			Info:          hithttp.InfoFinal,
			Duration:      8 * time.Millisecond,
		},
	}

	id, err := store.Save(ctx, Record{
		Method:     "GET",
		URL:        "http://example.com/one",
		StatusCode: 200,
		Attempts:   2,
		DurationMs: 8,
		CreatedAt:  start,
	}, timeline)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, entries, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, 200, rec.StatusCode)
	assert.True(t, start.Equal(rec.CreatedAt))

	require.Len(t, entries, 2)
	assert.Equal(t, hithttp.InfoRedirect, entries[0].Info)
	assert.Equal(t, "/two", entries[0].ResponseHeaders.Get("Location"))
	assert.Equal(t, []hithttp.Header{{Name: "host", Value: "example.com"}}, entries[0].RequestHeaders)
	assert.Equal(t, 12*time.Millisecond, entries[0].Duration)
	assert.Equal(t, "http://example.com/two", entries[1].RequestURL)
}

func TestStore_GetMissing(t *testing.T) {
	store := openStore(t)

	_, _, err := store.Get(context.Background(), "nope")

	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_List(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Now()

	for i, rec := range []Record{
		{Method: "GET", URL: "http://a", StatusCode: 200},
		{Method: "POST", URL: "http://b", ErrorKind: hithttp.KindNetwork, Error: "refused"},
		{Method: "GET", URL: "http://c", StatusCode: 404},
	} {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Second)
		_, err := store.Save(ctx, rec, nil)
		require.NoError(t, err)
	}

	all, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "http://c", all[0].URL, "newest first")

	limited, err := store.List(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	posts, err := store.List(ctx, ListOptions{Method: "post"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "http://b", posts[0].URL)

	failed, err := store.List(ctx, ListOptions{ErrorOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, hithttp.KindNetwork, failed[0].ErrorKind)
}

func TestNewRecord(t *testing.T) {
	timeline := hithttp.NewTimeline()
	started := time.Now().Add(-time.Second)
	timeline.Append(hithttp.TimelineEntry{Timestamp: started, StatusCode: 302})
	timeline.Append(hithttp.TimelineEntry{Timestamp: started.Add(time.Millisecond), StatusCode: 302})

	req := hithttp.NewRequest("get", "http://example.com")
	err := &hithttp.RedirectLimitExceededError{Max: 1, URL: "http://example.com"}
	rec := NewRecord(req, &hithttp.Result{
		ID:       "abc",
		Timeline: timeline,
		Response: &hithttp.Response{StatusCode: 302, Duration: 40 * time.Millisecond, BodyLocation: "memory"},
	}, err)

	assert.Equal(t, "abc", rec.ID)
	assert.Equal(t, "GET", rec.Method)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, 302, rec.StatusCode)
	assert.Equal(t, int64(40), rec.DurationMs)
	assert.Equal(t, hithttp.KindRedirectLimit, rec.ErrorKind)
	assert.NotEmpty(t, rec.Error)
	assert.True(t, started.Equal(rec.CreatedAt))
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "sqlite://./h.db", want: "./h.db"},
		{in: "sqlite:h.db", want: "h.db"},
		{in: "/tmp/h.db", want: "/tmp/h.db"},
		{in: "postgres://localhost/db", wantErr: true},
		{in: "  ", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseConnectionString(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
