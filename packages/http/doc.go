// Package http executes logical API requests against a server.
//
// A logical request is one user-initiated send. The Client turns it into a
// sequence of attempts:
//   - redirects are followed by hand, keeping method and body
//   - digest challenges are answered on the same logical request
//   - every attempt is signed and logged through a fresh interceptor chain
//   - every attempt is recorded on a Timeline
//
// Only the final attempt's body is kept. It is streamed into a Sink, so a
// cancelled or failed transfer never leaves a partial file behind.
package http
