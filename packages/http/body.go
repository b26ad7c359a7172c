package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
)

// PayloadKind tags the wire-level shape of a request body.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadBytes
	PayloadURLEncoded
	PayloadMultipart
	PayloadStream
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadBytes:
		return "bytes"
	case PayloadURLEncoded:
		return "urlencoded"
	case PayloadMultipart:
		return "multipart"
	case PayloadStream:
		return "stream"
	default:
		return "none"
	}
}

// Payload is a request body that can be opened once per attempt.
// Reopenable payloads produce an identical stream on every Open; one-shot
// payloads return ErrBodyAlreadyConsumed after the first.
type Payload interface {
	Kind() PayloadKind
	Open() (io.ReadCloser, error)
	// ContentLength is the exact size in bytes, or -1 when unknown.
	ContentLength() int64
	Reopenable() bool
}

type noPayload struct{}

// NoBody is the empty payload.
var NoBody Payload = noPayload{}

func (noPayload) Kind() PayloadKind            { return PayloadNone }
func (noPayload) Open() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(nil)), nil }
func (noPayload) ContentLength() int64         { return 0 }
func (noPayload) Reopenable() bool             { return true }

type bytesPayload struct {
	kind PayloadKind
	data []byte
}

// BytesPayload wraps a fixed body. The slice is copied.
func BytesPayload(data []byte) Payload {
	return &bytesPayload{kind: PayloadBytes, data: append([]byte(nil), data...)}
}

// URLEncodedPayload wraps an already encoded form body.
func URLEncodedPayload(encoded string) Payload {
	return &bytesPayload{kind: PayloadURLEncoded, data: []byte(encoded)}
}

func (p *bytesPayload) Kind() PayloadKind { return p.kind }

func (p *bytesPayload) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p.data)), nil
}

func (p *bytesPayload) ContentLength() int64 { return int64(len(p.data)) }
func (p *bytesPayload) Reopenable() bool     { return true }

// Bytes returns the fixed body.
func (p *bytesPayload) Bytes() []byte { return p.data }

type streamPayload struct {
	mu       sync.Mutex
	r        io.Reader
	length   int64
	consumed bool
}

// StreamPayload wraps a caller-supplied reader that can be sent only once.
// Pass length -1 when the size is unknown.
func StreamPayload(r io.Reader, length int64) Payload {
	return &streamPayload{r: r, length: length}
}

func (p *streamPayload) Kind() PayloadKind { return PayloadStream }

func (p *streamPayload) Open() (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return nil, ErrBodyAlreadyConsumed
	}
	p.consumed = true
	if rc, ok := p.r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(p.r), nil
}

func (p *streamPayload) ContentLength() int64 { return p.length }
func (p *streamPayload) Reopenable() bool     { return false }

const unsignedPayload = "UNSIGNED-PAYLOAD"

// payloadSHA256 returns the hex SHA-256 of the body. One-shot streams are
// not read; they hash as UNSIGNED-PAYLOAD.
func payloadSHA256(p Payload) (string, error) {
	if p == nil {
		p = NoBody
	}
	if bp, ok := p.(*bytesPayload); ok {
		return sha256Hex(bp.data), nil
	}
	if !p.Reopenable() {
		return unsignedPayload, nil
	}
	rc, err := p.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// payloadBytes reads a reopenable body fully. Used by digest auth-int.
func payloadBytes(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	if bp, ok := p.(*bytesPayload); ok {
		return bp.data, nil
	}
	if !p.Reopenable() {
		return nil, ErrBodyAlreadyConsumed
	}
	rc, err := p.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
