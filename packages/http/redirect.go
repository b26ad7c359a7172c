package http

import (
	"net/http"
	neturl "net/url"
)

// Timeline info strings for each attempt outcome.
const (
	InfoRedirect    = "Server returned redirect"
	InfoDigestAuth  = "Server returned Digest-Auth details"
	InfoFinal       = "Final response"
	InfoNetworkFail = "Request failed"
)

var redirectStatuses = map[int]bool{
	http.StatusMultipleChoices:   true,
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// IsRedirectStatus reports whether status is one this engine follows.
func IsRedirectStatus(status int) bool {
	return redirectStatuses[status]
}

// Headers carrying credentials that must not follow a redirect to another
// origin.
var crossOriginStripped = []string{"authorization", "cookie"}

// ResolveRedirect returns the next attempt for a redirect response, or nil
// when the response is not a followable redirect. Location is resolved
// against the prior attempt's effective URL; a target scheme other than http
// or https leaves the 3xx as the final response. The method and body are kept
// for every redirect status, including 301/302/303: an API client replays the
// request it was given instead of downgrading to GET like a browser.
func ResolveRedirect(status int, header http.Header, prior *Description) (*Description, error) {
	if !IsRedirectStatus(status) {
		return nil, nil
	}
	location := header.Get("Location")
	if location == "" {
		return nil, nil
	}

	base, err := neturl.Parse(prior.URL())
	if err != nil {
		return nil, &InvalidURLError{URL: prior.URL(), Err: err}
	}
	ref, err := neturl.Parse(location)
	if err != nil {
		return nil, &InvalidURLError{URL: location, Err: err}
	}
	target := base.ResolveReference(ref)
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, nil
	}
	target.Fragment = ""

	next := prior.derive(target)
	next.RedirectDepth = prior.RedirectDepth + 1
	if next.Origin != prior.Origin {
		for _, name := range crossOriginStripped {
			next.Headers.Del(name)
		}
	}
	return next, nil
}
