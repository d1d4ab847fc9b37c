package urllib

import (
	"fmt"
	"time"
)

// TimeoutPhase tells which deadline of an attempt expired.
type TimeoutPhase string

const (
	// PhaseConnect covers the interval from connection acquisition until
	// the request has been fully written.
	PhaseConnect TimeoutPhase = "connect"
	// PhaseResponse covers the interval from request fully written until
	// the response has been fully received.
	PhaseResponse TimeoutPhase = "response"
)

// InvalidOptionError is returned when caller-supplied options conflict
// or carry values that can never be valid. It is never retried.
type InvalidOptionError struct {
	Option string
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("urllib: invalid option %q: %s", e.Option, e.Reason)
}

// ConnectError is returned when DNS resolution, the TCP connect or the
// TLS handshake fails, or the connection dies before the request was
// fully written. No response bytes have been received.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("urllib: connect %s failed: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TimeoutError is returned when the connect-phase or response-phase
// deadline of an attempt expired and the in-flight operation was
// cancelled.
type TimeoutError struct {
	Phase   TimeoutPhase
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("urllib: %s timeout after %v", e.Phase, e.Timeout)
}

// IsTimeout always reports true, so callers can probe without a type
// assertion.
func (e *TimeoutError) IsTimeout() bool { return true }

// AuthError is returned when credentials are malformed or a digest
// challenge misses required fields.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("urllib: auth failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("urllib: auth failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TooManyRedirectsError is returned when a redirect chain exceeds the
// configured MaxRedirects. Response carries the last 3xx response.
type TooManyRedirectsError struct {
	Hops     int
	Response *Response
}

func (e *TooManyRedirectsError) Error() string {
	return fmt.Sprintf("urllib: stopped after %d redirects", e.Hops)
}

// JSONParseError is returned when DataType is "json" and the response
// body is not valid JSON. Raw carries the undecoded body, Offset the
// byte position the parser failed at when known.
type JSONParseError struct {
	Raw    []byte
	Offset int64
	Err    error
}

func (e *JSONParseError) Error() string {
	return fmt.Sprintf("urllib: json parse failed at offset %d: %v", e.Offset, e.Err)
}

func (e *JSONParseError) Unwrap() error { return e.Err }

// StreamReplayError is returned when a redirect or digest retry would
// need to resend a single-use input stream that was already consumed.
type StreamReplayError struct {
	Method string
	URL    string
}

func (e *StreamReplayError) Error() string {
	return fmt.Sprintf("urllib: %s %s: request stream already consumed, cannot replay", e.Method, e.URL)
}
