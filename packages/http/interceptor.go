package http

import (
	"context"
	neturl "net/url"
	"time"
)

// Interceptor observes or mutates an outgoing attempt right before it is
// sent. It receives the chain's working copy and returns the copy to pass on.
type Interceptor interface {
	Intercept(ctx context.Context, req *Description) (*Description, error)
}

// InterceptorFunc adapts a function to the Interceptor interface.
type InterceptorFunc func(ctx context.Context, req *Description) (*Description, error)

func (f InterceptorFunc) Intercept(ctx context.Context, req *Description) (*Description, error) {
	return f(ctx, req)
}

// Chain runs interceptors in declared order.
type Chain []Interceptor

// Apply runs the chain over a private copy of req; req itself is left
// untouched so the attempt it describes can still be derived from.
func (c Chain) Apply(ctx context.Context, req *Description) (*Description, error) {
	out := req.clone()
	for _, ic := range c {
		next, err := ic.Intercept(ctx, out)
		if err != nil {
			return nil, err
		}
		if next != nil {
			out = next
		}
	}
	return out, nil
}

// HostHeader sets the host header from the attempt's origin, dropping the
// scheme's default port.
type HostHeader struct{}

func (HostHeader) Intercept(_ context.Context, req *Description) (*Description, error) {
	u, err := neturl.Parse(req.Origin)
	if err != nil {
		return nil, &InvalidURLError{URL: req.Origin, Err: err}
	}
	host := u.Host
	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		host = u.Hostname()
	}
	req.Headers.Set("host", host)
	return req, nil
}

// SigV4Signer signs each attempt with AWS Signature Version 4.
type SigV4Signer struct {
	Credentials *AWSAuthCredentials
	Now         func() time.Time
}

func (s *SigV4Signer) Intercept(_ context.Context, req *Description) (*Description, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if _, err := SignAWSRequest(req, s.Credentials, now()); err != nil {
		return nil, err
	}
	return req, nil
}

// HeaderCapture snapshots the headers as they leave the chain. It must run
// last and must not be shared between attempts.
type HeaderCapture struct {
	captured []Header
}

func (h *HeaderCapture) Intercept(_ context.Context, req *Description) (*Description, error) {
	h.captured = req.Headers.List()
	return req, nil
}

// Captured returns the snapshot taken by the last Intercept call.
func (h *HeaderCapture) Captured() []Header {
	out := make([]Header, len(h.captured))
	copy(out, h.captured)
	return out
}

// buildChain assembles a fresh chain for one attempt:
// host header, caller interceptors, SigV4 (awsv4 only), header capture.
func buildChain(auth *AuthContext, extra []Interceptor, clock func() time.Time) (Chain, *HeaderCapture) {
	capture := &HeaderCapture{}
	chain := Chain{HostHeader{}}
	chain = append(chain, extra...)
	if auth != nil && auth.Mode == AuthAWSV4 {
		chain = append(chain, &SigV4Signer{Credentials: auth.AWS, Now: clock})
	}
	chain = append(chain, capture)
	return chain, capture
}
