package urllib

import (
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

// timeoutController enforces the two independent deadlines of one
// attempt. The connect deadline is armed at acquisition and disarmed
// once the request has been fully written; the response deadline is
// armed at that same point and disarmed when the response has been
// fully received (or handed off as a stream).
//
// The timers fire on their own goroutines. Expiry and normal completion
// race; whoever wins the mutex first decides the outcome, so exactly one
// of {TimeoutError, normal result} is ever observed. Cancelling an
// already-finished attempt is a no-op.
type timeoutController struct {
	connectTimeout  time.Duration
	responseTimeout time.Duration

	cancel context.CancelFunc

	mu            sync.Mutex
	connectTimer  *time.Timer
	responseTimer *time.Timer
	wrote         bool
	done          bool
	expired       bool
	phase         TimeoutPhase
	released      bool
}

func newTimeoutController(connect, response time.Duration) *timeoutController {
	return &timeoutController{
		connectTimeout:  connect,
		responseTimeout: response,
	}
}

// start arms the connect deadline and returns the context the attempt
// must run under. The returned context is cancelled on expiry of either
// deadline.
func (t *timeoutController) start(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Lock()
	t.connectTimer = time.AfterFunc(t.connectTimeout, func() {
		t.expire(PhaseConnect)
	})
	t.mu.Unlock()
	return httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) {
			t.requestSent()
		},
	})
}

// requestSent marks the connect-to-response phase transition: the
// request is fully flushed.
func (t *timeoutController) requestSent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || t.expired || t.wrote {
		return
	}
	t.wrote = true
	t.connectTimer.Stop()
	t.responseTimer = time.AfterFunc(t.responseTimeout, func() {
		t.expire(PhaseResponse)
	})
}

func (t *timeoutController) expire(phase TimeoutPhase) {
	t.mu.Lock()
	if t.done || t.expired {
		t.mu.Unlock()
		return
	}
	t.expired = true
	t.phase = phase
	t.mu.Unlock()
	t.cancel()
}

// finish disarms both deadlines without releasing the underlying
// connection. Idempotent.
func (t *timeoutController) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	if t.connectTimer != nil {
		t.connectTimer.Stop()
	}
	if t.responseTimer != nil {
		t.responseTimer.Stop()
	}
}

// release cancels the attempt context. Called once the connection is no
// longer needed: after the body was fully consumed, or to force-close a
// cancelled transfer so it is not pooled. Idempotent.
func (t *timeoutController) release() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	t.mu.Unlock()
	t.cancel()
}

// requestWritten reports whether the request left the connect phase.
func (t *timeoutController) requestWritten() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wrote
}

// timeoutErr returns the TimeoutError when a deadline expired, nil
// otherwise.
func (t *timeoutController) timeoutErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.expired {
		return nil
	}
	d := t.connectTimeout
	if t.phase == PhaseResponse {
		d = t.responseTimeout
	}
	return &TimeoutError{Phase: t.phase, Timeout: d}
}

// guardedBody wraps a response body so the response deadline stays
// armed through the body read, read errors caused by an expired timer
// surface as TimeoutError, and Close releases the attempt exactly once.
type guardedBody struct {
	rc        io.ReadCloser
	tc        *timeoutController
	transport *http.Transport // ephemeral transport to tear down, may be nil
	closeOnce sync.Once
}

func (b *guardedBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err == io.EOF {
		b.tc.finish()
		return n, err
	}
	if err != nil {
		if te := b.tc.timeoutErr(); te != nil {
			return n, te
		}
	}
	return n, err
}

func (b *guardedBody) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.tc.finish()
		err = b.rc.Close()
		b.tc.release()
		if b.transport != nil {
			b.transport.CloseIdleConnections()
		}
	})
	return err
}
