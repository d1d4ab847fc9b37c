package urllib

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/SoraYama/urllib/internal/header"
)

// Callback receives the terminal outcome of a request issued through
// the callback-style entry points: the error (nil on success), the
// decoded data (nil on failure) and the response when one was received.
type Callback func(err error, data interface{}, res *Response)

// ResponseEvent is delivered to OnResponse observers once per logical
// request, after the terminal outcome is known. Error and Response
// mirror what the caller got; Response may be nil when the transport
// failed before any response arrived.
type ResponseEvent struct {
	Error    error
	Response *Response
	URL      string
	Method   string
}

// HttpClient executes requests over two shared pooled agents, one per
// scheme. The zero value is not usable, construct it with NewHttpClient.
type HttpClient struct {
	// DebugLog prints a line per attempt when enabled.
	DebugLog bool

	defaultArgs *RequestOptions
	agent       *http.Transport
	httpsAgent  *http.Transport
	log         Logger
	digestCache *challengeCache

	obsMu             sync.RWMutex
	responseObservers []func(*ResponseEvent)
	errorObservers    []func(error)
}

// NewHttpClient creates a client. The optional argument provides
// instance-level default options merged under every call's options.
func NewHttpClient(defaultArgs ...*RequestOptions) *HttpClient {
	c := &HttpClient{
		agent:       newAgent(nil),
		httpsAgent:  newAgent(nil),
		log:         createDefaultLogger(),
		digestCache: newChallengeCache(),
	}
	if len(defaultArgs) > 0 {
		c.defaultArgs = defaultArgs[0]
	}
	return c
}

// SetDefaultArgs replaces the instance-level default options.
func (c *HttpClient) SetDefaultArgs(opts *RequestOptions) *HttpClient {
	c.defaultArgs = opts
	return c
}

// SetLogger set the customized logger for client, will disable log if
// set to nil.
func (c *HttpClient) SetLogger(log Logger) *HttpClient {
	if log == nil {
		c.log = &disableLogger{}
		return c
	}
	c.log = log
	return c
}

// EnableDebugLog enable debug level log (disabled by default).
func (c *HttpClient) EnableDebugLog() *HttpClient {
	c.DebugLog = true
	return c
}

// OnResponse subscribes an observer notified once per logical request.
func (c *HttpClient) OnResponse(fn func(*ResponseEvent)) *HttpClient {
	c.obsMu.Lock()
	c.responseObservers = append(c.responseObservers, fn)
	c.obsMu.Unlock()
	return c
}

// OnError subscribes an observer notified on every failed request.
func (c *HttpClient) OnError(fn func(error)) *HttpClient {
	c.obsMu.Lock()
	c.errorObservers = append(c.errorObservers, fn)
	c.obsMu.Unlock()
	return c
}

// Close tears down the client's pooled agents.
func (c *HttpClient) Close() {
	c.agent.CloseIdleConnections()
	c.httpsAgent.CloseIdleConnections()
}

// Request executes a request and returns its terminal outcome. Non-2xx
// statuses are data, not errors: err is non-nil only when the request
// itself failed.
func (c *HttpClient) Request(url string, opts ...*RequestOptions) (*Response, error) {
	return c.do(nil, url, firstOption(opts))
}

// RequestWithContext is Request bound to a caller context.
func (c *HttpClient) RequestWithContext(ctx context.Context, url string, opts ...*RequestOptions) (*Response, error) {
	return c.do(ctx, url, firstOption(opts))
}

// Curl is a pure alias of Request.
func (c *HttpClient) Curl(url string, opts ...*RequestOptions) (*Response, error) {
	return c.Request(url, opts...)
}

// RequestWithCallback executes the request on its own goroutine and
// delivers the outcome through cb exactly once.
func (c *HttpClient) RequestWithCallback(url string, opts *RequestOptions, cb Callback) {
	go func() {
		res, err := c.do(nil, url, opts)
		if err != nil {
			cb(err, nil, res)
			return
		}
		cb(nil, res.Data, res)
	}()
}

// RequestThunk returns a continuation that runs the request when given
// a callback.
func (c *HttpClient) RequestThunk(url string, opts *RequestOptions) func(Callback) {
	return func(cb Callback) {
		c.RequestWithCallback(url, opts, cb)
	}
}

func firstOption(opts []*RequestOptions) *RequestOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return nil
}

// do is the single execution path under both calling conventions.
func (c *HttpClient) do(ctx context.Context, rawurl string, opts *RequestOptions) (*Response, error) {
	start := time.Now()
	merged := mergeOptions(c.defaultArgs, opts)
	if ctx != nil {
		merged.Ctx = ctx
	}
	plan, err := normalizeOptions(rawurl, merged)
	if err != nil {
		c.emit(&ResponseEvent{Error: err, URL: rawurl, Method: merged.Method})
		return nil, err
	}
	res, err := c.doWithRetry(plan, start)
	c.emit(&ResponseEvent{Error: err, Response: res, URL: rawurl, Method: plan.method})
	return res, err
}

// doWithRetry re-drives the whole request while the response status is
// 500 or above and retry budget remains. Failed attempts (errors) are
// never retried; neither are stream bodies or requests that already
// wrote into a caller sink.
func (c *HttpClient) doWithRetry(plan *requestPlan, start time.Time) (*Response, error) {
	for retried := 0; ; retried++ {
		res, err := c.drive(plan, start)
		if err != nil {
			return res, err
		}
		if res.StatusCode < 500 || retried >= plan.retry ||
			!plan.body.replayable() || plan.streaming || plan.writeStream != nil {
			return res, err
		}
		if c.DebugLog {
			c.log.Debugf("<retry #%d> %s %s got status %d", retried+1, plan.method, plan.url, res.StatusCode)
		}
		if plan.retryDelay > 0 {
			select {
			case <-plan.ctx.Done():
				return res, plan.ctx.Err()
			case <-time.After(plan.retryDelay):
			}
		}
	}
}

// drive performs one redirect/digest chain of attempts and decodes the
// terminal response.
func (c *HttpClient) drive(plan *requestPlan, start time.Time) (*Response, error) {
	var (
		currentURL    = plan.url
		method        = plan.method
		body          = plan.body
		bodyDropped   = false
		authAllowed   = true
		digestRetried = false
		hops          = 0
		attempts      = 0
		timing        *timingTrace
	)
	if plan.timing {
		timing = newTimingTrace(start)
	}

	for {
		attempts++
		req, err := buildRequest(plan, method, currentURL, body, authAllowed, bodyDropped)
		if err != nil {
			return nil, err
		}
		if plan.auth.kind == authDigest && authAllowed {
			if entry := c.digestCache.lookup(currentURL.Host); entry != nil {
				if value, err := entry.authorize(req, plan.auth); err == nil {
					req.Header.Set(header.Authorization, value)
				}
			}
		}

		tc := newTimeoutController(plan.connectTimeout, plan.responseTimeout)
		ctx := tc.start(plan.ctx)
		if timing != nil {
			ctx = timing.createContext(ctx)
		}
		req = req.WithContext(ctx)
		if attempts == 1 && plan.beforeRequest != nil {
			plan.beforeRequest(req)
		}

		transport, ephemeral := c.acquire(plan, currentURL)
		if c.DebugLog {
			c.log.Debugf("%s %s", method, currentURL)
		}

		resp, err := transport.RoundTrip(req)
		if err != nil {
			tc.finish()
			tc.release()
			if ephemeral {
				transport.CloseIdleConnections()
			}
			if te := tc.timeoutErr(); te != nil {
				return nil, te
			}
			if ctxErr := plan.ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !tc.requestWritten() {
				return nil, &ConnectError{Host: currentURL.Host, Err: err}
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized && plan.auth.kind == authDigest &&
			authAllowed && !digestRetried && hasDigestChallenge(resp) {
			chal, err := parseChallenge(resp)
			discardResponse(resp, tc, transport, ephemeral)
			if err != nil {
				return nil, err
			}
			c.digestCache.store(currentURL.Host, chal)
			digestRetried = true
			continue
		}

		if plan.followRedirect && isRedirectStatus(resp.StatusCode) && resp.Header.Get(header.Location) != "" {
			next, err := resolveRedirect(plan, currentURL, resp)
			if err != nil {
				discardResponse(resp, tc, transport, ephemeral)
				return nil, err
			}
			if hops >= plan.maxRedirects {
				res := &Response{
					Response:   resp,
					RequestURL: currentURL,
					Attempts:   attempts,
					RT:         time.Since(start),
				}
				discardResponse(resp, tc, transport, ephemeral)
				return res, &TooManyRedirectsError{Hops: hops, Response: res}
			}
			nextMethod, keepBody := redirectMethod(resp.StatusCode, method)
			if !keepBody {
				body = &bodySource{kind: bodyNone}
				bodyDropped = true
			}
			if next.Host != currentURL.Host {
				// never leak credentials cross-host
				authAllowed = false
			}
			if c.DebugLog {
				c.log.Debugf("<redirect> %s %s", nextMethod, next)
			}
			discardResponse(resp, tc, transport, ephemeral)
			method = nextMethod
			currentURL = next
			hops++
			continue
		}

		return c.finalize(plan, resp, tc, timing, start, attempts, currentURL, transport, ephemeral)
	}
}

// finalize wires the response body into the decoder (or hands it off
// live in streaming mode) and assembles the terminal Response.
func (c *HttpClient) finalize(plan *requestPlan, resp *http.Response, tc *timeoutController,
	timing *timingTrace, start time.Time, attempts int, u *url.URL,
	transport *http.Transport, ephemeral bool) (*Response, error) {

	guard := &guardedBody{rc: resp.Body, tc: tc}
	if ephemeral {
		guard.transport = transport
	}
	resp.Body = guard
	res := &Response{
		Response:   resp,
		RequestURL: u,
		Attempts:   attempts,
	}

	if plan.streaming {
		// resolve at headers, the live body belongs to the caller now
		tc.finish()
		res.RT = time.Since(start)
		if timing != nil {
			res.Timing = timing.record(time.Now())
		}
		return res, nil
	}

	data, size, err := decodeBody(plan, resp, resp.Body)
	res.RT = time.Since(start)
	res.Size = size
	if timing != nil {
		res.Timing = timing.record(time.Now())
	}
	if err != nil {
		return res, err
	}
	res.Data = data
	return res, nil
}

func buildRequest(plan *requestPlan, method string, u *url.URL, body *bodySource, authAllowed, bodyDropped bool) (*http.Request, error) {
	headers := plan.headers.Clone()
	if !authAllowed {
		headers.Del(header.Authorization)
	}
	if bodyDropped {
		// a downgrade hop must not describe a body it no longer sends
		headers.Del(header.ContentType)
	}

	var (
		reqBody       io.ReadCloser
		getBody       func() (io.ReadCloser, error)
		contentLength int64
	)
	switch body.kind {
	case bodyBuffer:
		buf := body.buf
		getBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		}
		reqBody, _ = getBody()
		contentLength = int64(len(buf))
	case bodyStream:
		if body.consumed {
			return nil, &StreamReplayError{Method: method, URL: u.String()}
		}
		body.consumed = true
		if rc, ok := body.stream.(io.ReadCloser); ok {
			reqBody = rc
		} else {
			reqBody = io.NopCloser(body.stream)
		}
	}

	return &http.Request{
		Method:        method,
		URL:           u,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          reqBody,
		GetBody:       getBody,
		ContentLength: contentLength,
		Host:          headers.Get(header.Host),
	}, nil
}

// discardResponse drains a non-terminal response so the connection can
// go back to the pool, then disarms and releases the attempt.
func discardResponse(resp *http.Response, tc *timeoutController, transport *http.Transport, ephemeral bool) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	tc.finish()
	tc.release()
	if ephemeral {
		transport.CloseIdleConnections()
	}
}

func (c *HttpClient) emit(ev *ResponseEvent) {
	c.obsMu.RLock()
	responseObservers := make([]func(*ResponseEvent), len(c.responseObservers))
	copy(responseObservers, c.responseObservers)
	errorObservers := make([]func(error), len(c.errorObservers))
	copy(errorObservers, c.errorObservers)
	c.obsMu.RUnlock()

	for _, fn := range responseObservers {
		fn(ev)
	}
	if ev.Error != nil {
		for _, fn := range errorObservers {
			fn(ev.Error)
		}
	}
}
