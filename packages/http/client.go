package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultTimeout is the default per-attempt timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 25
	// DefaultUserAgent is sent when the request sets no user-agent
	DefaultUserAgent = "hitwire/1.0"
)

const tracerName = "github.com/abdul-hamid-achik/hitwire/packages/http"

// Client executes logical requests: it follows redirects and answers digest
// challenges itself, recording every attempt on a Timeline.
type Client struct {
	transport      Transport
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
	interceptors   []Interceptor
	sinks          SinkFactory
	logger         zerolog.Logger
	tracer         trace.Tracer
	clock          func() time.Time
	awsResolver    AWSCredentialResolver
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: map[string]string{"user-agent": DefaultUserAgent},
		sinks:          MemorySinks(),
		logger:         zerolog.Nop(),
		tracer:         otel.Tracer(tracerName),
		clock:          time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(TransportOptions{
			ValidateSSL: c.validateSSL,
			ProxyURL:    c.proxyURL,
		})
	}

	return c
}

// WithTimeout bounds each attempt, body transfer included. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithFollowRedirects turns redirect following off; a 3xx is then final.
func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[strings.ToLower(key)] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[strings.ToLower(k)] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithTransport replaces the network transport. SSL and proxy options are
// ignored when set.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithInterceptors adds interceptors that run after the host header is set
// and before SigV4 signing.
func WithInterceptors(interceptors ...Interceptor) ClientOption {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithSinks sets where final response bodies are written.
func WithSinks(f SinkFactory) ClientOption {
	return func(c *Client) {
		c.sinks = f
	}
}

// WithResponseDir writes final response bodies to files in dir.
func WithResponseDir(dir string) ClientOption {
	return func(c *Client) {
		if dir != "" {
			c.sinks = FileSinks(dir)
		}
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithClock sets the time source used for SigV4 signing.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.clock = now
	}
}

// WithAWSCredentialResolver replaces the shared-config profile lookup.
func WithAWSCredentialResolver(r AWSCredentialResolver) ClientOption {
	return func(c *Client) {
		c.awsResolver = r
	}
}

// Result is the outcome of a logical request. It is returned even when
// Execute fails: the Timeline then holds every attempt made so far and
// Response is set when the failure came after a final response.
type Result struct {
	ID       string
	Response *Response
	Timeline *Timeline
}

// Do executes req without cancellation and returns the final response.
func (c *Client) Do(req *Request) (*Response, error) {
	result, err := c.Execute(context.Background(), req)
	return result.Response, err
}

func (c *Client) Get(url string) (*Response, error) {
	return c.Do(NewRequest(http.MethodGet, url))
}

func (c *Client) Post(url string, contentType string, body string) (*Response, error) {
	req := NewRequest(http.MethodPost, url).SetBody(BodyText, body)
	if contentType != "" {
		req.SetHeader("Content-Type", contentType)
	}
	return c.Do(req)
}

// Execute runs a logical request to completion. Cancelling ctx aborts the
// attempt in flight and returns a *CancelledError.
func (c *Client) Execute(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{ID: uuid.NewString(), Timeline: NewTimeline()}
	log := c.logger.With().Str("request_id", result.ID).Logger()

	ctx, span := c.tracer.Start(ctx, "hitwire.execute", trace.WithAttributes(
		attribute.String("hitwire.request_id", result.ID),
	))
	defer span.End()

	resp, err := c.execute(ctx, req, result.Timeline, log)
	result.Response = resp

	span.SetAttributes(attribute.Int("hitwire.attempts", result.Timeline.Len()))
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	case IsCancelled(err):
		span.SetAttributes(attribute.Bool("hitwire.cancelled", true))
		log.Info().Int("attempts", result.Timeline.Len()).Msg("request cancelled")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
		log.Warn().Err(err).Str("kind", ErrorKind(err)).Msg("request failed")
	}
	return result, err
}

func (c *Client) execute(ctx context.Context, req *Request, timeline *Timeline, log zerolog.Logger) (*Response, error) {
	desc, err := BuildDescription(req)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(c.defaultHeaders))
	for name := range c.defaultHeaders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !desc.Headers.Has(name) {
			desc.Headers.Set(name, c.defaultHeaders[name])
		}
	}

	auth, err := newAuthContext(ctx, req.Auth, c.awsResolver)
	if err != nil {
		return nil, err
	}

	maxRedirects := c.maxRedirects
	if req.MaxRedirects != nil {
		maxRedirects = *req.MaxRedirects
	}

	for {
		if cancelled(ctx) {
			return nil, &CancelledError{Err: ctx.Err()}
		}
		if err := ctx.Err(); err != nil {
			return nil, &NetworkError{Method: desc.Method, URL: desc.URL(), Err: err}
		}

		next, resp, err := c.attempt(ctx, desc, auth, maxRedirects, timeline, log)
		if err != nil || next == nil {
			return resp, err
		}
		desc = next
	}
}

// attempt sends one Description. It returns the next Description to send,
// or the final response.
func (c *Client) attempt(ctx context.Context, desc *Description, auth *AuthContext, maxRedirects int, timeline *Timeline, log zerolog.Logger) (*Description, *Response, error) {
	attemptCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	attemptCtx, span := c.tracer.Start(attemptCtx, "hitwire.attempt", trace.WithAttributes(
		attribute.String("http.request.method", desc.Method),
		attribute.String("url.full", desc.URL()),
		attribute.Int("hitwire.redirect_depth", desc.RedirectDepth),
	))
	defer span.End()

	chain, capture := buildChain(auth, c.interceptors, c.clock)
	sent, err := chain.Apply(attemptCtx, desc)
	if err != nil {
		return nil, nil, err
	}

	log.Debug().
		Str("method", sent.Method).
		Str("url", sent.URL()).
		Int("depth", sent.RedirectDepth).
		Msg("sending attempt")

	started := time.Now()
	ex, err := c.transport.Send(attemptCtx, sent)
	if err != nil {
		if cancelled(ctx) {
			return nil, nil, &CancelledError{Err: ctx.Err()}
		}
		if errors.Is(err, ErrBodyAlreadyConsumed) {
			return nil, nil, err
		}
		var urlErr *InvalidURLError
		if errors.As(err, &urlErr) {
			return nil, nil, err
		}
		netErr := &NetworkError{Method: sent.Method, URL: sent.URL(), Err: err}
		timeline.Append(TimelineEntry{
			Timestamp:      started,
			RequestMethod:  sent.Method,
			RequestURL:     sent.URL(),
			RequestHeaders: capture.Captured(),
			Info:           InfoNetworkFail,
			Error:          err.Error(),
			Duration:       time.Since(started),
		})
		span.RecordError(netErr)
		log.Debug().Err(err).Str("url", sent.URL()).Msg("attempt failed")
		return nil, nil, netErr
	}
	defer ex.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", ex.StatusCode))

	entry := TimelineEntry{
		Timestamp:       started,
		RequestMethod:   sent.Method,
		RequestURL:      sent.URL(),
		RequestHeaders:  capture.Captured(),
		ResponseHeaders: ex.Header,
		StatusCode:      ex.StatusCode,
		Info:            InfoFinal,
		Duration:        ex.Elapsed,
	}

	next, info, err := c.decide(ex, desc, auth)
	if err != nil {
		entry.Info = InfoNetworkFail
		entry.Error = err.Error()
		timeline.Append(entry)
		span.RecordError(err)
		log.Debug().Err(err).Int("status", ex.StatusCode).Msg("resolving follow-up attempt")
		return nil, nil, err
	}
	limitExceeded := next != nil && next.RedirectDepth > maxRedirects

	if next != nil {
		entry.Info = info
	}
	timeline.Append(entry)

	log.Debug().
		Int("status", ex.StatusCode).
		Str("info", entry.Info).
		Dur("elapsed", ex.Elapsed).
		Msg("attempt complete")

	if next != nil && !limitExceeded {
		if _, err := io.Copy(discardSink{}, ex.Body); err != nil {
			if cancelled(ctx) {
				return nil, nil, &CancelledError{Err: ctx.Err()}
			}
			log.Debug().Err(err).Msg("draining response body")
		}
		return next, nil, nil
	}

	resp, err := c.capture(ctx, ex, sent)
	if err != nil {
		return nil, nil, err
	}
	if limitExceeded {
		return nil, resp, &RedirectLimitExceededError{Max: maxRedirects, URL: sent.URL()}
	}
	return nil, resp, nil
}

// decide picks the follow-up attempt for a response. Redirects are checked
// before digest challenges.
func (c *Client) decide(ex *Exchange, desc *Description, auth *AuthContext) (*Description, string, error) {
	if c.followRedirect {
		next, err := ResolveRedirect(ex.StatusCode, ex.Header, desc)
		if err != nil || next != nil {
			return next, InfoRedirect, err
		}
	}
	if auth.Digest != nil {
		next, err := auth.Digest.Resolve(ex.StatusCode, ex.Header, desc)
		if err != nil || next != nil {
			return next, InfoDigestAuth, err
		}
	}
	return nil, InfoFinal, nil
}

// capture streams the final body into a sink from the client's factory.
func (c *Client) capture(ctx context.Context, ex *Exchange, sent *Description) (*Response, error) {
	sink, err := c.sinks()
	if err != nil {
		return nil, fmt.Errorf("opening response sink: %w", err)
	}

	n, err := io.Copy(sink, ex.Body)
	if err != nil {
		_ = sink.Abort()
		if cancelled(ctx) {
			return nil, &CancelledError{Err: ctx.Err()}
		}
		return nil, &NetworkError{Method: sent.Method, URL: sent.URL(), Err: err}
	}
	if err := sink.Commit(); err != nil {
		_ = sink.Abort()
		return nil, fmt.Errorf("saving response body: %w", err)
	}

	resp := &Response{
		StatusCode:   ex.StatusCode,
		Status:       ex.Status,
		URL:          sent.URL(),
		Headers:      ex.Header,
		Encoding:     DetectEncoding(ex.Header.Get("Content-Type")),
		BodyLocation: sink.Location(),
		Size:         n,
		Duration:     ex.Elapsed,
	}
	if mem, ok := sink.(*MemorySink); ok {
		resp.Body = mem.Bytes()
	}
	return resp, nil
}

// cancelled reports whether the caller cancelled the logical request. A
// deadline set by the per-attempt timeout does not count.
func cancelled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}
