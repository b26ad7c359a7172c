package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Get(server.URL + "/test")

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Contains(t, resp.BodyString(), "hello")
	assert.Equal(t, "memory", resp.BodyLocation)
	assert.Equal(t, int64(len(`{"message": "hello"}`)), resp.Size)
}

func TestClient_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"name": "test"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Post(server.URL, "application/json", `{"name": "test"}`)

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Contains(t, resp.BodyString(), "123")
}

func TestClient_SchemelessURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Get(strings.TrimPrefix(server.URL, "http://") + "/ping")

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, server.URL+"/ping", resp.URL)
}

func TestClient_InvalidURL(t *testing.T) {
	client := NewClient()
	result, err := client.Execute(context.Background(), NewRequest("GET", "ftp://example.com/file"))

	var urlErr *InvalidURLError
	require.ErrorAs(t, err, &urlErr)
	assert.Equal(t, KindInvalidURL, ErrorKind(err))
	assert.Nil(t, result.Response)
	assert.Equal(t, 0, result.Timeline.Len())
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	result, err := client.Execute(context.Background(), NewRequest("GET", server.URL))

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
	assert.False(t, IsCancelled(err))

	entries := result.Timeline.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, InfoNetworkFail, entries[0].Info)
	assert.NotEmpty(t, entries[0].Error)
}

func TestClient_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	client := NewClient()
	result, err := client.Execute(context.Background(), NewRequest("GET", target))

	assert.Equal(t, KindNetwork, ErrorKind(err))
	assert.Nil(t, result.Response)
	last, ok := result.Timeline.Last()
	require.True(t, ok)
	assert.Equal(t, InfoNetworkFail, last.Info)
	assert.Equal(t, 0, last.StatusCode)
	assert.Equal(t, target+"/", last.RequestURL)
}

func TestClient_WithDefaultHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeader("Authorization", "test-token"))
	resp, err := client.Get(server.URL)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_WithDefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "value1", r.Header.Get("X-Header-1"))
		assert.Equal(t, "request", r.Header.Get("X-Header-2"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeaders(map[string]string{
		"X-Header-1": "value1",
		"X-Header-2": "value2",
	}))
	req := NewRequest("GET", server.URL).SetHeader("X-Header-2", "request")
	_, err := client.Do(req)

	require.NoError(t, err)
}

func TestClient_FollowRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/one", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/two?x=1", http.StatusFound)
	})
	mux.HandleFunc("/two", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("x"))
		_, _ = w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient()
	result, err := client.Execute(context.Background(), NewRequest("GET", server.URL+"/one"))

	require.NoError(t, err)
	assert.Equal(t, 200, result.Response.StatusCode)
	assert.Equal(t, "ok", result.Response.BodyString())
	assert.Equal(t, server.URL+"/two?x=1", result.Response.URL)

	entries := result.Timeline.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, InfoRedirect, entries[0].Info)
	assert.Equal(t, http.StatusFound, entries[0].StatusCode)
	assert.Equal(t, server.URL+"/one", entries[0].RequestURL)
	assert.Equal(t, InfoFinal, entries[1].Info)
	assert.Equal(t, server.URL+"/two?x=1", entries[1].RequestURL)
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	result, err := client.Execute(context.Background(), NewRequest("GET", server.URL))

	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, result.Response.StatusCode)
	assert.Equal(t, 1, result.Timeline.Len())
}

// chainServer redirects /r/<n> to /r/<n+1> until n reaches hops.
func chainServer(t *testing.T, hops int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/r/"))
		if !assert.NoError(t, err) {
			return
		}
		if n < hops {
			w.Header().Set("Location", fmt.Sprintf("/r/%d", n+1))
			w.WriteHeader(http.StatusFound)
			_, _ = w.Write([]byte("redirecting"))
			return
		}
		_, _ = w.Write([]byte("done"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_RedirectChainWithinLimit(t *testing.T) {
	for _, hops := range []int{0, 1, 3} {
		t.Run(strconv.Itoa(hops), func(t *testing.T) {
			server := chainServer(t, hops)

			client := NewClient(WithMaxRedirects(3))
			result, err := client.Execute(context.Background(), NewRequest("GET", server.URL+"/r/0"))

			require.NoError(t, err)
			assert.Equal(t, "done", result.Response.BodyString())
			entries := result.Timeline.Entries()
			require.Len(t, entries, hops+1)
			for _, e := range entries[:hops] {
				assert.Equal(t, InfoRedirect, e.Info)
			}
			assert.Equal(t, InfoFinal, entries[hops].Info)
		})
	}
}

func TestClient_MaxRedirects(t *testing.T) {
	server := chainServer(t, 100)

	client := NewClient(WithMaxRedirects(3))
	result, err := client.Execute(context.Background(), NewRequest("GET", server.URL+"/r/0"))

	var limitErr *RedirectLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 3, limitErr.Max)
	assert.Equal(t, KindRedirectLimit, ErrorKind(err))

	require.NotNil(t, result.Response)
	assert.Equal(t, http.StatusFound, result.Response.StatusCode)
	assert.Equal(t, "redirecting", result.Response.BodyString())
	assert.Equal(t, 4, result.Timeline.Len())
}

func TestClient_MaxRedirectsZero(t *testing.T) {
	server := chainServer(t, 1)

	max := 0
	req := NewRequest("GET", server.URL+"/r/0")
	req.MaxRedirects = &max

	result, err := NewClient().Execute(context.Background(), req)

	var limitErr *RedirectLimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 1, result.Timeline.Len())
}

func TestClient_RedirectPreservesMethodAndBody(t *testing.T) {
	for _, status := range []int{301, 302, 303, 307, 308} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", "/new")
				w.WriteHeader(status)
			})
			mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, "POST", r.Method)
				assert.Equal(t, `{"a":1}`, string(body))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				w.WriteHeader(http.StatusCreated)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			req := NewRequest("POST", server.URL+"/old").SetBody(BodyJSON, `{"a":1}`)
			resp, err := NewClient().Do(req)

			require.NoError(t, err)
			assert.Equal(t, http.StatusCreated, resp.StatusCode)
		})
	}
}

func TestClient_CrossOriginRedirectDropsCredentials(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Cookie"))
		assert.Equal(t, "kept", r.Header.Get("X-Custom"))
		w.WriteHeader(http.StatusOK)
	}))
	defer other.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		http.Redirect(w, r, other.URL+"/landing", http.StatusTemporaryRedirect)
	}))
	defer origin.Close()

	req := NewRequest("GET", origin.URL).
		SetHeader("Cookie", "session=1").
		SetHeader("X-Custom", "kept").
		SetAuth(AuthConfig{Mode: AuthBearer, Bearer: &BearerAuth{Token: "secret"}})

	result, err := NewClient().Execute(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Timeline.Len())
}

func TestClient_StreamBodyCannotBeReplayed(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.Copy(io.Discard, r.Body)
		http.Redirect(w, r, "/again", http.StatusTemporaryRedirect)
	}))
	defer server.Close()

	req := NewRequest("POST", server.URL)
	req.Body = Body{Mode: BodyText, Stream: strings.NewReader("payload"), StreamLength: 7}

	result, err := NewClient().Execute(context.Background(), req)

	assert.ErrorIs(t, err, ErrBodyAlreadyConsumed)
	assert.Equal(t, KindBodyConsumed, ErrorKind(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, result.Timeline.Len())
}

func TestClient_DigestAuth(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		header := r.Header.Get("Authorization")
		if header == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="test", nonce="n1", qop="auth,auth-int", opaque="op"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		params := ParseWWWAuthenticate(header)
		expected := (&DigestAuth{
			Username: "alice",
			Password: "wonderland",
			Realm:    "test",
			Nonce:    "n1",
			URI:      "/private?x=1",
			Qop:      "auth",
			Nc:       params["nc"],
			Cnonce:   params["cnonce"],
			Method:   "GET",
		}).ComputeDigestResponse()
		assert.Equal(t, "00000001", params["nc"])
		assert.Equal(t, "/private?x=1", params["uri"])
		assert.Equal(t, "op", params["opaque"])
		assert.Equal(t, expected, params["response"])
		_, _ = w.Write([]byte("secret"))
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL+"/private?x=1").SetAuth(AuthConfig{
		Mode:   AuthDigest,
		Digest: &DigestAuthCredentials{Username: "alice", Password: "wonderland"},
	})
	result, err := NewClient().Execute(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "secret", result.Response.BodyString())
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))

	entries := result.Timeline.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, InfoDigestAuth, entries[0].Info)
	assert.Equal(t, http.StatusUnauthorized, entries[0].StatusCode)
	assert.Equal(t, InfoFinal, entries[1].Info)
}

func TestClient_RedirectToUnsupportedSchemeIsFinal(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Location", "ftp://files.example.com/x")
		w.WriteHeader(http.StatusFound)
		_, _ = w.Write([]byte("moved"))
	}))
	defer server.Close()

	result, err := NewClient().Execute(context.Background(), NewRequest("GET", server.URL))

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, http.StatusFound, result.Response.StatusCode)
	assert.Equal(t, "moved", result.Response.BodyString())
	require.Equal(t, 1, result.Timeline.Len())
	assert.Equal(t, InfoFinal, result.Timeline.Entries()[0].Info)
}

func TestClient_UnparseableRedirectIsRecorded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://[::1")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	result, err := NewClient().Execute(context.Background(), NewRequest("GET", server.URL))

	assert.Equal(t, KindInvalidURL, ErrorKind(err))
	require.Equal(t, 1, result.Timeline.Len())
	entry := result.Timeline.Entries()[0]
	assert.Equal(t, http.StatusFound, entry.StatusCode)
	assert.Equal(t, InfoNetworkFail, entry.Info)
	assert.Equal(t, err.Error(), entry.Error)
}

func TestClient_DigestAuthIntWithStreamIsRecorded(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("WWW-Authenticate", `Digest realm="test", nonce="abc", qop="auth-int"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	req := NewRequest("POST", server.URL).SetAuth(AuthConfig{
		Mode:   AuthDigest,
		Digest: &DigestAuthCredentials{Username: "alice", Password: "secret"},
	})
	req.Body = Body{Mode: BodyText, Stream: strings.NewReader("payload"), StreamLength: 7}

	result, err := NewClient().Execute(context.Background(), req)

	assert.Equal(t, KindAuthConfiguration, ErrorKind(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	require.Equal(t, 1, result.Timeline.Len())
	entry := result.Timeline.Entries()[0]
	assert.Equal(t, http.StatusUnauthorized, entry.StatusCode)
	assert.Equal(t, InfoNetworkFail, entry.Info)
	assert.NotEmpty(t, entry.Error)
}

func TestClient_DeadlineBetweenAttemptsIsNetworkError(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	result, err := NewClient().Execute(ctx, NewRequest("GET", "http://localhost"))

	assert.False(t, IsCancelled(err))
	assert.Equal(t, KindNetwork, ErrorKind(err))
	assert.Equal(t, 0, result.Timeline.Len())
}

func TestClient_DigestSameNonceIsFinal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", `Digest realm="test", nonce="fixed", qop="auth"`)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("denied"))
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL).SetAuth(AuthConfig{
		Mode:   AuthDigest,
		Digest: &DigestAuthCredentials{Username: "alice", Password: "wrong"},
	})
	result, err := NewClient().Execute(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, result.Response.StatusCode)
	assert.Equal(t, "denied", result.Response.BodyString())
	assert.Equal(t, 2, result.Timeline.Len())
}

func TestClient_DigestFreshNoncesAreCapped(t *testing.T) {
	var n int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := atomic.AddInt32(&n, 1)
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Digest realm="test", nonce="n%d"`, i))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL).SetAuth(AuthConfig{
		Mode:   AuthDigest,
		Digest: &DigestAuthCredentials{Username: "alice", Password: "wrong"},
	})
	result, err := NewClient().Execute(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, MaxDigestRetries+1, result.Timeline.Len())
}

func TestClient_AWSV4SignsEveryAttempt(t *testing.T) {
	fixed := time.Date(2015, 8, 30, 12, 36, 0, 0, time.UTC)
	var seen []string

	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		assert.Equal(t, "20150830T123600Z", r.Header.Get("X-Amz-Date"))
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	req := NewRequest("GET", server.URL+"/start").SetAuth(AuthConfig{
		Mode: AuthAWSV4,
		AWS: &AWSAuthCredentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
			Service:         "execute-api",
			Region:          "us-east-1",
		},
	})
	client := NewClient(WithClock(func() time.Time { return fixed }))
	result, err := client.Execute(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0], seen[1], "each attempt is signed for its own path")

	entries := result.Timeline.Entries()
	require.Len(t, entries, 2)
	for i, e := range entries {
		captured := NewHeaders()
		for _, h := range e.RequestHeaders {
			captured.Set(h.Name, h.Value)
		}
		assert.Equal(t, seen[i], captured.Get("authorization"))
		assert.Equal(t, "20150830T123600Z", captured.Get("x-amz-date"))
		assert.True(t, captured.Has("host"))
	}
}

func TestClient_AWSV4MissingRegion(t *testing.T) {
	req := NewRequest("GET", "https://example.amazonaws.com/").SetAuth(AuthConfig{
		Mode: AuthAWSV4,
		AWS:  &AWSAuthCredentials{AccessKeyID: "id", SecretAccessKey: "secret", Service: "s3"},
	})
	result, err := NewClient().Execute(context.Background(), req)

	var authErr *AuthConfigurationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 0, result.Timeline.Len())
}

func TestClient_AWSV4Profile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "Credential=PROFILEKEY/")
		assert.Equal(t, "token", r.Header.Get("X-Amz-Security-Token"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resolver := func(_ context.Context, profile string) (AWSAuthCredentials, error) {
		assert.Equal(t, "dev", profile)
		return AWSAuthCredentials{
			AccessKeyID:     "PROFILEKEY",
			SecretAccessKey: "profilesecret",
			SessionToken:    "token",
			Region:          "eu-west-1",
		}, nil
	}

	req := NewRequest("GET", server.URL).SetAuth(AuthConfig{
		Mode: AuthAWSV4,
		AWS:  &AWSAuthCredentials{ProfileName: "dev", Service: "execute-api"},
	})
	_, err := NewClient(WithAWSCredentialResolver(resolver)).Do(req)

	require.NoError(t, err)
}

func TestClient_InterceptorHeadersAreCaptured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.Header.Get("X-Trace"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	trace := InterceptorFunc(func(_ context.Context, req *Description) (*Description, error) {
		req.Headers.Set("x-trace", "abc")
		return req, nil
	})

	result, err := NewClient(WithInterceptors(trace)).Execute(context.Background(), NewRequest("GET", server.URL))

	require.NoError(t, err)
	last, ok := result.Timeline.Last()
	require.True(t, ok)
	assert.Contains(t, last.RequestHeaders, Header{Name: "x-trace", Value: "abc"})
	assert.Contains(t, last.RequestHeaders, Header{Name: "host", Value: strings.TrimPrefix(server.URL, "http://")})
}

func TestClient_InterceptorError(t *testing.T) {
	boom := errors.New("boom")
	failing := InterceptorFunc(func(context.Context, *Description) (*Description, error) {
		return nil, boom
	})

	_, err := NewClient(WithInterceptors(failing)).Execute(context.Background(), NewRequest("GET", "http://localhost"))

	assert.ErrorIs(t, err, boom)
}

func TestClient_ResponseDir(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=ISO-8859-1")
		_, _ = w.Write([]byte("stored on disk"))
	}))
	defer server.Close()

	dir := t.TempDir()
	resp, err := NewClient(WithResponseDir(dir)).Get(server.URL)

	require.NoError(t, err)
	assert.Nil(t, resp.Body)
	assert.Equal(t, "windows-1252", resp.Encoding)

	data, err := os.ReadFile(resp.BodyLocation)
	require.NoError(t, err)
	assert.Equal(t, "stored on disk", string(data))
	assert.Equal(t, "stored on disk", resp.BodyString())
}

func TestClient_CancelDuringBody(t *testing.T) {
	streaming := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		close(streaming)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-streaming
		cancel()
	}()

	dir := t.TempDir()
	result, err := NewClient(WithResponseDir(dir)).Execute(ctx, NewRequest("GET", server.URL))

	require.True(t, IsCancelled(err), "got %v", err)
	assert.Equal(t, KindCancelled, ErrorKind(err))
	assert.Nil(t, result.Response)

	files, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, files)
}

func TestClient_CancelBeforeSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewClient().Execute(ctx, NewRequest("GET", "http://localhost"))

	assert.True(t, IsCancelled(err))
	assert.Equal(t, 0, result.Timeline.Len())
}

type stubTransport struct {
	status int
	header http.Header
	body   string
	sent   []*Description
}

func (s *stubTransport) Send(_ context.Context, req *Description) (*Exchange, error) {
	s.sent = append(s.sent, req)
	return &Exchange{
		StatusCode: s.status,
		Status:     http.StatusText(s.status),
		Header:     s.header,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Elapsed:    5 * time.Millisecond,
	}, nil
}

func TestClient_WithTransport(t *testing.T) {
	stub := &stubTransport{
		status: http.StatusAccepted,
		header: http.Header{"Content-Type": {"application/json"}},
		body:   `{"queued":true}`,
	}

	result, err := NewClient(WithTransport(stub)).Execute(context.Background(), NewRequest("put", "https://api.example.com:443/jobs"))

	require.NoError(t, err)
	require.Len(t, stub.sent, 1)
	assert.Equal(t, "PUT", stub.sent[0].Method)
	assert.Equal(t, "api.example.com", stub.sent[0].Headers.Get("host"))
	assert.Equal(t, int64(5), result.Response.DurationMs())
	assert.True(t, result.Response.IsJSON())

	body, err := result.Response.BodyJSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"queued": true}, body)
}
