package urllib

import (
	"errors"
	"testing"
	"time"

	"github.com/SoraYama/urllib/internal/header"
	"github.com/SoraYama/urllib/internal/tests"
)

func intPtr(v int) *int { return &v }

func TestNormalizeDefaults(t *testing.T) {
	plan, err := normalizeOptions("http://example.com/x", mergeOptions(nil, nil))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "GET", plan.method)
	tests.AssertEqual(t, defaultConnectTimeout, plan.connectTimeout)
	tests.AssertEqual(t, defaultResponseTimeout, plan.responseTimeout)
	tests.AssertEqual(t, defaultMaxRedirects, plan.maxRedirects)
	tests.AssertEqual(t, false, plan.followRedirect)
	tests.AssertEqual(t, bodyNone, plan.body.kind)
	tests.AssertEqual(t, header.DefaultUserAgent, plan.headers.Get(header.UserAgent))
}

func TestNormalizeMethodUppercased(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{Method: "post"}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "POST", plan.method)
}

func TestNormalizeBadScheme(t *testing.T) {
	_, err := normalizeOptions("ftp://example.com", mergeOptions(nil, nil))
	var invalid *InvalidOptionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOptionError, got %v", err)
	}
}

func TestNormalizeTimeoutScalarAndPair(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Timeout: []time.Duration{7 * time.Second},
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, 7*time.Second, plan.connectTimeout)
	tests.AssertEqual(t, 7*time.Second, plan.responseTimeout)

	plan, err = normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Timeout: []time.Duration{time.Second, 9 * time.Second},
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, time.Second, plan.connectTimeout)
	tests.AssertEqual(t, 9*time.Second, plan.responseTimeout)
}

func TestNormalizeTimeoutInvalid(t *testing.T) {
	_, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Timeout: []time.Duration{-time.Second},
	}))
	var invalid *InvalidOptionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOptionError, got %v", err)
	}

	_, err = normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Timeout: []time.Duration{time.Second, time.Second, time.Second},
	}))
	tests.AssertErrorContains(t, err, "timeout")
}

func TestNormalizeAuthConflict(t *testing.T) {
	_, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Auth:       "a:b",
		DigestAuth: "c:d",
	}))
	var invalid *InvalidOptionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOptionError, got %v", err)
	}
	tests.AssertErrorContains(t, err, "mutually exclusive")
}

func TestNormalizeBasicAuthHeader(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{Auth: "user:pass"}))
	tests.AssertNoError(t, err)
	// base64("user:pass")
	tests.AssertEqual(t, "Basic dXNlcjpwYXNz", plan.headers.Get(header.Authorization))
}

func TestNormalizeDigestAuthMalformed(t *testing.T) {
	_, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{DigestAuth: "nopassword"}))
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestNormalizeProxyRequiresURL(t *testing.T) {
	_, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{EnableProxy: true}))
	tests.AssertErrorContains(t, err, "proxy")

	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		EnableProxy: true,
		Proxy:       "http://127.0.0.1:8888",
	}))
	tests.AssertNoError(t, err)
	tests.AssertNotNil(t, plan.proxy)
	tests.AssertEqual(t, "127.0.0.1:8888", plan.proxy.Host)
}

func TestNormalizeNegativeRetry(t *testing.T) {
	_, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{Retry: -1}))
	tests.AssertErrorContains(t, err, "retry")
}

func TestNormalizeHeaderMergeCallerWins(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Headers: map[string]string{"user-agent": "custom-agent"},
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "custom-agent", plan.headers.Get(header.UserAgent))
}

func TestNormalizeGzipHeader(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{Gzip: true}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "gzip, br", plan.headers.Get(header.AcceptEncoding))
}

func TestNormalizeDataTypeAcceptHeader(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{DataType: "json"}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, header.JsonContentType, plan.headers.Get(header.Accept))
}

func TestNormalizeMaxRedirects(t *testing.T) {
	// explicit zero is a zero-hop budget, distinct from the unset default
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		FollowRedirect: true,
		MaxRedirects:   intPtr(0),
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, 0, plan.maxRedirects)

	_, err = normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		MaxRedirects: intPtr(-1),
	}))
	var invalid *InvalidOptionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOptionError, got %v", err)
	}
	tests.AssertEqual(t, "maxRedirects", invalid.Option)
}

func TestMergeOptionsPrecedence(t *testing.T) {
	def := &RequestOptions{
		Method:   "PUT",
		DataType: "json",
		Gzip:     true,
		Timeout:  []time.Duration{time.Second},
	}
	merged := mergeOptions(def, &RequestOptions{Method: "DELETE"})
	tests.AssertEqual(t, "DELETE", merged.Method)
	tests.AssertEqual(t, "json", merged.DataType)
	tests.AssertEqual(t, true, merged.Gzip)
	tests.AssertEqual(t, []time.Duration{time.Second}, merged.Timeout)
}

func TestBodySourcePrecedence(t *testing.T) {
	// stream > content > data
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Method:  "POST",
		Data:    map[string]interface{}{"a": "b"},
		Content: []byte("raw"),
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, bodyBuffer, plan.body.kind)
	tests.AssertEqual(t, []byte("raw"), plan.body.buf)
}
