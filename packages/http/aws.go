package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	awsAlgorithm     = "AWS4-HMAC-SHA256"
	awsAmzDateFormat = "20060102T150405Z"
	awsDateFormat    = "20060102"
)

// Headers never included in the signature.
var awsUnsignedHeaders = map[string]bool{
	"authorization":     true,
	"user-agent":        true,
	"x-amzn-trace-id":   true,
	"expect":            true,
	"connection":        true,
	"transfer-encoding": true,
}

// AWSSignature holds the intermediate values of a SigV4 signature, kept for
// diagnostics.
type AWSSignature struct {
	CanonicalRequest string
	StringToSign     string
	SignedHeaders    string
	Signature        string
	Authorization    string
}

// SignAWSRequest signs req using AWS Signature Version 4 at time t.
// It sets x-amz-date, x-amz-security-token (with a session token),
// x-amz-content-sha256 (s3 only) and authorization on req.Headers.
func SignAWSRequest(req *Description, creds *AWSAuthCredentials, t time.Time) (*AWSSignature, error) {
	if err := validateAWSCredentials(creds); err != nil {
		return nil, err
	}

	t = t.UTC()
	amzDate := t.Format(awsAmzDateFormat)
	dateStamp := t.Format(awsDateFormat)

	payloadHash, err := payloadSHA256(req.Body)
	if err != nil {
		return nil, fmt.Errorf("hashing request body: %w", err)
	}

	headers := req.Headers
	headers.Del("authorization")
	headers.Set("x-amz-date", amzDate)
	if creds.SessionToken != "" {
		headers.Set("x-amz-security-token", creds.SessionToken)
	} else {
		headers.Del("x-amz-security-token")
	}
	if creds.Service == "s3" {
		headers.Set("x-amz-content-sha256", payloadHash)
	}
	if !headers.Has("host") {
		if u, err := url.Parse(req.Origin); err == nil {
			headers.Set("host", u.Host)
		}
	}

	rawPath, rawQuery, _ := strings.Cut(req.Path, "?")
	canonicalURI := rawPath
	if canonicalURI == "" {
		canonicalURI = "/"
	}
	if creds.Service != "s3" {
		canonicalURI = awsEscapePath(canonicalURI)
	}

	canonicalHeaders, signedHeaders := canonicalizeHeaders(headers)

	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI,
		createCanonicalQueryString(rawQuery),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request",
		dateStamp, creds.Region, creds.Service)

	stringToSign := strings.Join([]string{
		awsAlgorithm,
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := getSignatureKey(creds.SecretAccessKey, dateStamp, creds.Region, creds.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	authHeader := fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		awsAlgorithm, creds.AccessKeyID, credentialScope, signedHeaders, signature)
	headers.Set("authorization", authHeader)

	return &AWSSignature{
		CanonicalRequest: canonicalRequest,
		StringToSign:     stringToSign,
		SignedHeaders:    signedHeaders,
		Signature:        signature,
		Authorization:    authHeader,
	}, nil
}

func validateAWSCredentials(creds *AWSAuthCredentials) error {
	switch {
	case creds == nil:
		return &AuthConfigurationError{Mode: AuthAWSV4, Reason: "missing credentials"}
	case creds.AccessKeyID == "":
		return &AuthConfigurationError{Mode: AuthAWSV4, Reason: "missing access key id"}
	case creds.SecretAccessKey == "":
		return &AuthConfigurationError{Mode: AuthAWSV4, Reason: "missing secret access key"}
	case creds.Region == "":
		return &AuthConfigurationError{Mode: AuthAWSV4, Reason: "missing region"}
	case creds.Service == "":
		return &AuthConfigurationError{Mode: AuthAWSV4, Reason: "missing service"}
	}
	return nil
}

func canonicalizeHeaders(headers *Headers) (string, string) {
	values := make(map[string]string)
	var names []string
	for _, h := range headers.List() {
		if awsUnsignedHeaders[h.Name] {
			continue
		}
		names = append(names, h.Name)
		values[h.Name] = strings.Join(strings.Fields(h.Value), " ")
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(values[name])
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

func createCanonicalQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	for k := range values {
		sort.Strings(values[k])
	}
	// Encode sorts by key; AWS wants spaces as %20.
	return strings.ReplaceAll(values.Encode(), "+", "%20")
}

// awsEscapePath percent-encodes every byte outside the unreserved set,
// keeping '/'. Applied to an already escaped path this double-encodes, which
// is what non-S3 services expect.
func awsEscapePath(path string) string {
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' || isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func getSignatureKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	kSigning := hmacSHA256(kService, "aws4_request")
	return kSigning
}
