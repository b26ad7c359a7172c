package http

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"
)

// Response is the result of the final attempt of a logical request.
type Response struct {
	StatusCode int
	Status     string
	// URL is the effective URL of the final attempt.
	URL     string
	Headers http.Header
	// Encoding is the charset from Content-Type, utf-8 by default.
	Encoding     string
	BodyLocation string
	// Body is set when the body was captured in memory.
	Body []byte
	Size int64
	// Duration runs from send start to the arrival of response headers.
	Duration time.Duration
}

// ReadBody returns the body, reading it from disk for file sinks.
func (r *Response) ReadBody() ([]byte, error) {
	if r.Body != nil || r.BodyLocation == "" || r.BodyLocation == "memory" {
		return r.Body, nil
	}
	return os.ReadFile(r.BodyLocation)
}

func (r *Response) BodyString() string {
	body, _ := r.ReadBody()
	return string(body)
}

func (r *Response) BodyJSON() (any, error) {
	body, err := r.ReadBody()
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Response) Header(key string) string {
	return r.Headers.Get(key)
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

// DurationMs is the response time in milliseconds.
func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
