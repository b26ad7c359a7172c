package capture

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/tidwall/gjson"
)

// Source is the part of a response a capture reads.
type Source string

const (
	SourceBody     Source = "body"
	SourceHeader   Source = "header"
	SourceStatus   Source = "status"
	SourceDuration Source = "duration"
)

// Capture names a value to pull out of a final response.
type Capture struct {
	Name   string `yaml:"name" validate:"required"`
	Source Source `yaml:"source" validate:"oneof=body header status duration"`
	// Path is a gjson path for body captures and a header name for headers.
	Path string `yaml:"path"`
}

// Parse reads "name=source[.path]", e.g. "id=body.data.id" or
// "etag=header.ETag".
func Parse(expr string) (Capture, error) {
	name, rest, ok := strings.Cut(expr, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Capture{}, fmt.Errorf("invalid capture %q: want name=source[.path]", expr)
	}
	source, path, _ := strings.Cut(strings.TrimSpace(rest), ".")
	c := Capture{Name: name, Source: Source(source), Path: path}
	switch c.Source {
	case SourceBody, SourceHeader, SourceStatus, SourceDuration:
	default:
		return Capture{}, fmt.Errorf("invalid capture %q: unknown source %q", expr, source)
	}
	if c.Source == SourceHeader && c.Path == "" {
		return Capture{}, fmt.Errorf("invalid capture %q: header name required", expr)
	}
	return c, nil
}

type Extractor struct {
	response *http.Response
	body     []byte
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	e.body, _ = resp.ReadBody()
	if resp.IsJSON() || gjson.ValidBytes(e.body) {
		e.bodyJSON = gjson.ParseBytes(e.body)
	}
	return e
}

func (e *Extractor) Extract(c Capture) (any, bool) {
	switch c.Source {
	case SourceBody:
		return e.extractFromBody(c.Path)
	case SourceHeader:
		return e.extractFromHeader(c.Path)
	case SourceStatus:
		return e.response.StatusCode, true
	case SourceDuration:
		return e.response.DurationMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return string(e.body), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	values := e.response.Headers.Values(name)
	switch len(values) {
	case 0:
		return nil, false
	case 1:
		return values[0], true
	default:
		return values, true
	}
}

func ExtractAll(resp *http.Response, captures []Capture) map[string]any {
	results := make(map[string]any)
	if resp == nil {
		return results
	}
	extractor := NewExtractor(resp)

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		}
	}

	return results
}
