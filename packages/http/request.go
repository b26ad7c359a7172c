package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	neturl "net/url"
	"strings"
)

// BodyMode is the declared shape of a logical request body.
type BodyMode string

const (
	BodyNone           BodyMode = "none"
	BodyJSON           BodyMode = "json"
	BodyXML            BodyMode = "xml"
	BodyText           BodyMode = "text"
	BodySparql         BodyMode = "sparql"
	BodyFormURLEncoded BodyMode = "formUrlEncoded"
	BodyMultipartForm  BodyMode = "multipartForm"
)

var defaultContentTypes = map[BodyMode]string{
	BodyJSON:           "application/json",
	BodyXML:            "application/xml",
	BodyText:           "text/plain",
	BodySparql:         "application/sparql-query",
	BodyFormURLEncoded: "application/x-www-form-urlencoded",
}

// HeaderField is a request header as entered by the user.
type HeaderField struct {
	Name    string `yaml:"name"`
	Value   string `yaml:"value"`
	Enabled bool   `yaml:"enabled"`
}

// FormField is one url-encoded form pair.
type FormField struct {
	Name    string `yaml:"name"`
	Value   string `yaml:"value"`
	Enabled bool   `yaml:"enabled"`
}

// Body describes the logical body. Raw is used by the json, xml, text and
// sparql modes unless Stream is set, in which case the body is sent once.
type Body struct {
	Mode         BodyMode         `yaml:"mode"`
	Raw          string           `yaml:"raw"`
	Form         []FormField      `yaml:"form"`
	Multipart    []MultipartField `yaml:"multipart"`
	Stream       io.Reader        `yaml:"-"`
	StreamLength int64            `yaml:"-"`
}

// Request is a fully resolved logical request: variables are interpolated
// and scripts have already run.
type Request struct {
	Name    string        `yaml:"name"`
	Method  string        `yaml:"method"`
	URL     string        `yaml:"url" validate:"required"`
	Headers []HeaderField `yaml:"headers"`
	Body    Body          `yaml:"body"`
	Auth    AuthConfig    `yaml:"auth"`
	// MaxRedirects overrides the client limit when non-nil.
	MaxRedirects *int `yaml:"maxRedirects"`
	// BaseDir resolves relative multipart file paths.
	BaseDir string `yaml:"-"`
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method: method,
		URL:    requestURL,
		Body:   Body{Mode: BodyNone},
	}
}

func (r *Request) SetName(name string) *Request {
	r.Name = name
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers = append(r.Headers, HeaderField{Name: key, Value: value, Enabled: true})
	return r
}

func (r *Request) SetBody(mode BodyMode, raw string) *Request {
	r.Body = Body{Mode: mode, Raw: raw}
	return r
}

func (r *Request) SetAuth(auth AuthConfig) *Request {
	r.Auth = auth
	return r
}

func (r *Request) SetMaxRedirects(n int) *Request {
	r.MaxRedirects = &n
	return r
}

// Description is the wire-level form of one attempt. It is treated as
// immutable once handed to the transport: redirects and retries derive a
// new Description instead of editing this one.
type Description struct {
	Method string
	// Origin is scheme://host[:port].
	Origin string
	// Path is the escaped path plus query, always starting with "/".
	Path          string
	Headers       *Headers
	Body          Payload
	RedirectDepth int
}

// URL returns the effective URL of the attempt.
func (d *Description) URL() string {
	return d.Origin + d.Path
}

func (d *Description) clone() *Description {
	c := *d
	c.Headers = d.Headers.Clone()
	return &c
}

// derive copies d into a new attempt aimed at target. The body payload is
// shared; reopenable payloads rebuild their stream on the next Open.
func (d *Description) derive(target *neturl.URL) *Description {
	next := d.clone()
	next.Origin = target.Scheme + "://" + target.Host
	next.Path = requestPath(target)
	return next
}

// BuildDescription converts a logical request into the first attempt, with
// redirect depth 0.
func BuildDescription(req *Request) (*Description, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}

	u, err := ParseRequestURL(req.URL)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = "GET"
	}

	headers := NewHeaders()
	for _, h := range req.Headers {
		if !h.Enabled || strings.TrimSpace(h.Name) == "" {
			continue
		}
		headers.Set(strings.TrimSpace(h.Name), h.Value)
	}

	body, err := buildPayload(req, headers)
	if err != nil {
		return nil, err
	}

	applyStaticAuth(req.Auth, headers)

	return &Description{
		Method:  method,
		Origin:  u.Scheme + "://" + u.Host,
		Path:    requestPath(u),
		Headers: headers,
		Body:    body,
	}, nil
}

func buildPayload(req *Request, headers *Headers) (Payload, error) {
	b := req.Body
	if ct, ok := defaultContentTypes[b.Mode]; ok && !headers.Has("content-type") {
		headers.Set("content-type", ct)
	}

	switch b.Mode {
	case "", BodyNone:
		return NoBody, nil
	case BodyJSON, BodyXML, BodyText, BodySparql:
		if b.Stream != nil {
			return StreamPayload(b.Stream, b.StreamLength), nil
		}
		return BytesPayload([]byte(b.Raw)), nil
	case BodyFormURLEncoded:
		values := neturl.Values{}
		for _, f := range b.Form {
			if f.Enabled {
				values.Add(f.Name, f.Value)
			}
		}
		return URLEncodedPayload(values.Encode()), nil
	case BodyMultipartForm:
		var fields []MultipartField
		for _, f := range b.Multipart {
			if f.Enabled {
				fields = append(fields, f)
			}
		}
		mp, err := newMultipartPayload(fields, req.BaseDir)
		if err != nil {
			return nil, err
		}
		// The boundary is ours, so the content-type must be too.
		headers.Set("content-type", mp.ContentType())
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported body mode %q", b.Mode)
	}
}

func applyStaticAuth(auth AuthConfig, headers *Headers) {
	switch auth.Mode {
	case AuthBasic:
		if auth.Basic != nil {
			creds := auth.Basic.Username + ":" + auth.Basic.Password
			headers.Set("authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
		}
	case AuthBearer:
		if auth.Bearer != nil {
			headers.Set("authorization", "Bearer "+auth.Bearer.Token)
		}
	}
}

// ParseRequestURL parses an absolute or schemeless URL. Schemeless URLs are
// treated as http.
func ParseRequestURL(raw string) (*neturl.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &InvalidURLError{URL: raw, Err: errors.New("empty URL")}
	}
	if i := strings.Index(trimmed, "://"); i < 0 || strings.ContainsAny(trimmed[:i], "/?#") {
		trimmed = "http://" + strings.TrimPrefix(trimmed, "//")
	}
	u, err := neturl.Parse(trimmed)
	if err != nil {
		return nil, &InvalidURLError{URL: raw, Err: err}
	}
	if err := ValidateURL(u.String()); err != nil {
		return nil, &InvalidURLError{URL: raw, Err: err}
	}
	return u, nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}

func requestPath(u *neturl.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}
