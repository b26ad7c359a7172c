package http

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"strings"
)

// MaxDigestRetries caps digest retries per logical request, even when the
// server keeps issuing fresh nonces.
const MaxDigestRetries = 3

// DigestPhase is the position of a logical request in the digest handshake.
type DigestPhase int

const (
	DigestUnchallenged DigestPhase = iota
	DigestChallengeReceived
	DigestRetried
	DigestResolved
	DigestExhausted
)

func (p DigestPhase) String() string {
	switch p {
	case DigestChallengeReceived:
		return "challenge-received"
	case DigestRetried:
		return "retried"
	case DigestResolved:
		return "resolved"
	case DigestExhausted:
		return "exhausted"
	default:
		return "unchallenged"
	}
}

// DigestAuth contains the parameters needed for digest authentication
type DigestAuth struct {
	Username  string
	Password  string
	Realm     string
	Nonce     string
	URI       string
	Qop       string
	Nc        string
	Cnonce    string
	Opaque    string
	Method    string
	Algorithm string
	// BodyHash is H(entity-body), required for qop=auth-int.
	BodyHash string
}

// DigestState drives the digest handshake for one logical request. The
// challenge fields are filled once a 401 is seen.
type DigestState struct {
	Username string
	Password string

	Realm     string
	Nonce     string
	Qop       string
	Opaque    string
	Algorithm string

	phase   DigestPhase
	nc      int
	retries int
	cnonce  func() (string, error)
}

func NewDigestState(username, password string) *DigestState {
	return &DigestState{Username: username, Password: password, cnonce: GenerateCnonce}
}

func (s *DigestState) Phase() DigestPhase { return s.phase }

// NonceCount is the nc value sent with the last retry.
func (s *DigestState) NonceCount() int { return s.nc }

// Resolve inspects a response to prior and returns the retry attempt, or nil
// when the response is final. Only a 401 carrying a Digest challenge is
// retried, and never twice for the same nonce.
func (s *DigestState) Resolve(status int, header http.Header, prior *Description) (*Description, error) {
	if status != http.StatusUnauthorized {
		if s.phase == DigestRetried {
			s.phase = DigestResolved
		}
		return nil, nil
	}
	if s.phase == DigestExhausted || s.retries >= MaxDigestRetries {
		s.phase = DigestExhausted
		return nil, nil
	}

	params, ok := findDigestChallenge(header.Values("WWW-Authenticate"))
	if !ok || params["nonce"] == "" {
		return nil, nil
	}

	nonce := params["nonce"]
	if s.phase == DigestRetried && nonce == s.Nonce {
		s.phase = DigestExhausted
		return nil, nil
	}

	if nonce != s.Nonce {
		s.nc = 0
	}
	s.Realm = params["realm"]
	s.Nonce = nonce
	s.Qop = params["qop"]
	s.Opaque = params["opaque"]
	s.Algorithm = params["algorithm"]
	s.phase = DigestChallengeReceived

	authHeader, err := s.authorization(prior)
	if err != nil {
		return nil, err
	}

	next := prior.clone()
	next.Headers.Set("authorization", authHeader)
	s.phase = DigestRetried
	s.retries++
	return next, nil
}

func (s *DigestState) authorization(req *Description) (string, error) {
	s.nc++
	auth := &DigestAuth{
		Username:  s.Username,
		Password:  s.Password,
		Realm:     s.Realm,
		Nonce:     s.Nonce,
		URI:       req.Path,
		Opaque:    s.Opaque,
		Method:    req.Method,
		Algorithm: s.Algorithm,
		Qop:       selectQop(s.Qop),
	}

	if auth.Qop != "" || strings.HasSuffix(strings.ToLower(auth.Algorithm), "-sess") {
		auth.Nc = fmt.Sprintf("%08x", s.nc)
		cnonce, err := s.cnonce()
		if err != nil {
			return "", err
		}
		auth.Cnonce = cnonce
	}

	if auth.Qop == "auth-int" {
		body, err := payloadBytes(req.Body)
		if err != nil {
			return "", &AuthConfigurationError{Mode: AuthDigest, Reason: "qop=auth-int needs a replayable body", Err: err}
		}
		auth.BodyHash = auth.hash(string(body))
	}

	return auth.BuildAuthorizationHeader(), nil
}

// selectQop prefers auth over auth-int from the server's offer.
func selectQop(offer string) string {
	var hasAuthInt bool
	for _, q := range strings.Split(offer, ",") {
		switch strings.TrimSpace(q) {
		case "auth":
			return "auth"
		case "auth-int":
			hasAuthInt = true
		}
	}
	if hasAuthInt {
		return "auth-int"
	}
	return ""
}

func findDigestChallenge(values []string) (map[string]string, bool) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) >= 6 && strings.EqualFold(v[:6], "digest") && (len(v) == 6 || v[6] == ' ') {
			return ParseWWWAuthenticate(v), true
		}
	}
	return nil, false
}

// ParseWWWAuthenticate parses the WWW-Authenticate header from a 401 response.
// Values may be quoted; commas inside quotes do not split.
func ParseWWWAuthenticate(header string) map[string]string {
	result := make(map[string]string)

	header = strings.TrimSpace(header)
	if len(header) >= 6 && strings.EqualFold(header[:6], "digest") {
		header = header[6:]
	}

	for _, part := range splitAuthParams(header) {
		idx := strings.Index(part, "=")
		if idx == -1 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(part[:idx]))
		value := strings.TrimSpace(part[idx+1:])
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = strings.ReplaceAll(value[1:len(value)-1], `\"`, `"`)
		}
		result[key] = value
	}

	return result
}

func splitAuthParams(s string) []string {
	var parts []string
	var b strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && inQuotes && i+1 < len(s):
			b.WriteByte(c)
			i++
			b.WriteByte(s[i])
			continue
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			if p := strings.TrimSpace(b.String()); p != "" {
				parts = append(parts, p)
			}
			b.Reset()
			continue
		}
		b.WriteByte(c)
	}
	if p := strings.TrimSpace(b.String()); p != "" {
		parts = append(parts, p)
	}
	return parts
}

func (d *DigestAuth) newHash() hash.Hash {
	switch strings.ToUpper(strings.TrimSuffix(strings.ToLower(d.Algorithm), "-sess")) {
	case "SHA-256":
		return sha256.New()
	default:
		return md5.New()
	}
}

func (d *DigestAuth) hash(s string) string {
	h := d.newHash()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeDigestResponse calculates the digest response hash
func (d *DigestAuth) ComputeDigestResponse() string {
	// HA1 = H(username:realm:password)
	ha1 := d.hash(fmt.Sprintf("%s:%s:%s", d.Username, d.Realm, d.Password))
	if strings.HasSuffix(strings.ToLower(d.Algorithm), "-sess") {
		ha1 = d.hash(fmt.Sprintf("%s:%s:%s", ha1, d.Nonce, d.Cnonce))
	}

	// HA2 = H(method:uri), or H(method:uri:H(body)) for auth-int
	ha2 := d.hash(fmt.Sprintf("%s:%s", d.Method, d.URI))
	if d.Qop == "auth-int" {
		ha2 = d.hash(fmt.Sprintf("%s:%s:%s", d.Method, d.URI, d.BodyHash))
	}

	if d.Qop == "auth" || d.Qop == "auth-int" {
		// response = H(HA1:nonce:nc:cnonce:qop:HA2)
		return d.hash(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, d.Nonce, d.Nc, d.Cnonce, d.Qop, ha2))
	}
	// response = H(HA1:nonce:HA2)
	return d.hash(fmt.Sprintf("%s:%s:%s", ha1, d.Nonce, ha2))
}

// BuildAuthorizationHeader creates the Authorization header value
func (d *DigestAuth) BuildAuthorizationHeader() string {
	response := d.ComputeDigestResponse()

	parts := []string{
		fmt.Sprintf(`username="%s"`, d.Username),
		fmt.Sprintf(`realm="%s"`, d.Realm),
		fmt.Sprintf(`nonce="%s"`, d.Nonce),
		fmt.Sprintf(`uri="%s"`, d.URI),
	}

	if d.Algorithm != "" {
		parts = append(parts, fmt.Sprintf(`algorithm=%s`, d.Algorithm))
	}

	parts = append(parts, fmt.Sprintf(`response="%s"`, response))

	if d.Qop != "" {
		parts = append(parts, fmt.Sprintf(`qop=%s`, d.Qop))
		parts = append(parts, fmt.Sprintf(`nc=%s`, d.Nc))
		parts = append(parts, fmt.Sprintf(`cnonce="%s"`, d.Cnonce))
	} else if d.Cnonce != "" {
		parts = append(parts, fmt.Sprintf(`cnonce="%s"`, d.Cnonce))
	}

	if d.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, d.Opaque))
	}

	return "Digest " + strings.Join(parts, ", ")
}

// GenerateCnonce generates a random client nonce
func GenerateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
