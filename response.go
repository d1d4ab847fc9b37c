package urllib

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"
)

// Response is the terminal result of one logical request. The
// underlying *http.Response is embedded, so status, headers and (in
// streaming mode) the live body are reachable directly.
type Response struct {
	*http.Response

	// Data is the decoded response body: []byte by default, string
	// when dataType is "text", the unmarshalled value when "json".
	// Nil in streaming mode and when piping to a write stream.
	Data interface{}

	// RequestURL is the finally resolved URL, after redirects.
	RequestURL *url.URL

	// Attempts is the number of physical request/response exchanges
	// performed: 1 plus redirect hops, digest retries and 5xx retries.
	Attempts int

	// Size is the number of decoded body bytes received.
	Size int64

	// RT is the total time of the logical request.
	RT time.Duration

	// Timing holds the phase timings, present only when the Timing
	// option was enabled.
	Timing *TimingRecord
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Response != nil && r.StatusCode >= 200 && r.StatusCode <= 299
}

// TimingRecord holds monotonic phase timings of the last attempt,
// measured from the start of the logical request. Read-only after
// completion.
type TimingRecord struct {
	// Queuing is when a connection was requested from the pool.
	Queuing time.Duration
	// DNSLookup is when name resolution finished.
	DNSLookup time.Duration
	// Connected is when the connection (including the TLS handshake,
	// if any) was ready.
	Connected time.Duration
	// RequestSent is when the request was fully flushed.
	RequestSent time.Duration
	// Waiting is when the first response byte arrived.
	Waiting time.Duration
	// ContentDownload is when the response was fully received.
	ContentDownload time.Duration
}

// timingTrace collects timestamps through httptrace callbacks. One
// trace spans the whole logical request; later attempts overwrite the
// connection-phase marks, so the record reflects the attempt that
// produced the final response.
type timingTrace struct {
	start            time.Time
	getConn          time.Time
	dnsDone          time.Time
	connectDone      time.Time
	tlsHandshakeDone time.Time
	wroteRequest     time.Time
	firstByte        time.Time
}

func newTimingTrace(start time.Time) *timingTrace {
	return &timingTrace{start: start}
}

func (t *timingTrace) createContext(ctx context.Context) context.Context {
	return httptrace.WithClientTrace(
		ctx,
		&httptrace.ClientTrace{
			GetConn: func(string) {
				t.getConn = time.Now()
			},
			DNSDone: func(httptrace.DNSDoneInfo) {
				t.dnsDone = time.Now()
			},
			ConnectDone: func(network, addr string, err error) {
				t.connectDone = time.Now()
			},
			TLSHandshakeDone: func(tls.ConnectionState, error) {
				t.tlsHandshakeDone = time.Now()
			},
			WroteRequest: func(httptrace.WroteRequestInfo) {
				t.wroteRequest = time.Now()
			},
			GotFirstResponseByte: func() {
				t.firstByte = time.Now()
			},
		},
	)
}

// record materializes the timing record at completion time end.
func (t *timingTrace) record(end time.Time) *TimingRecord {
	rec := &TimingRecord{
		Queuing:         t.since(t.getConn),
		DNSLookup:       t.since(t.dnsDone),
		Connected:       t.since(t.connectDone),
		RequestSent:     t.since(t.wroteRequest),
		Waiting:         t.since(t.firstByte),
		ContentDownload: end.Sub(t.start),
	}
	if !t.tlsHandshakeDone.IsZero() {
		rec.Connected = t.since(t.tlsHandshakeDone)
	}
	return rec
}

func (t *timingTrace) since(mark time.Time) time.Duration {
	if mark.IsZero() {
		return 0
	}
	return mark.Sub(t.start)
}
