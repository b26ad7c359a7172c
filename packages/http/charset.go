package http

import (
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is used when Content-Type has no recognised charset.
const DefaultEncoding = "utf-8"

// DetectEncoding returns the canonical charset name from a Content-Type
// header value.
func DetectEncoding(contentType string) string {
	if contentType == "" {
		return DefaultEncoding
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return DefaultEncoding
	}
	charset := strings.TrimSpace(params["charset"])
	if charset == "" {
		return DefaultEncoding
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return DefaultEncoding
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return DefaultEncoding
	}
	return name
}
