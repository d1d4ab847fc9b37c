package urllib

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SoraYama/urllib/internal/header"
	"github.com/SoraYama/urllib/internal/util"
)

const (
	defaultConnectTimeout  = 5 * time.Second
	defaultResponseTimeout = 5 * time.Second
	defaultMaxRedirects    = 10
)

// RequestOptions is the per-request configuration. The zero value is
// usable; unset fields fall back to the instance-level defaults and then
// to the library defaults.
type RequestOptions struct {
	// Method is the HTTP method, GET by default. Case-insensitive.
	Method string

	// Data is the request payload. With ContentType "json" it is
	// serialized as JSON, otherwise as an URL-encoded form body
	// (flat or nested per NestedQuerystring). For GET/HEAD, or when
	// DataAsQueryString is set for any method, it goes into the URL
	// query string instead.
	Data interface{}

	// DataAsQueryString forces Data into the URL query string
	// regardless of the request method.
	DataAsQueryString bool

	// Content is the raw request body. Overrides Data.
	Content []byte

	// Stream is a single-use request body stream. Overrides Content
	// and Data. It is piped, never buffered, so it cannot be replayed
	// on 307/308 redirects or digest retries.
	Stream io.Reader

	// ContentType selects the request body serialization, e.g. "json".
	ContentType string

	// DataType selects the response decoding: "json" parses the body
	// (and sets Accept: application/json), "text" decodes it to a
	// string using the response charset, anything else keeps raw bytes.
	DataType string

	// FixJSONCtlChars repairs raw control characters (U+0000..U+001F)
	// in a JSON body before parsing.
	FixJSONCtlChars bool

	// Headers are merged case-insensitively over the computed headers,
	// caller wins.
	Headers map[string]string

	// Timeout holds the attempt deadlines. One element sets both the
	// connect phase and the response phase, two elements set them
	// independently. Defaults to 5s for both.
	Timeout []time.Duration

	// Auth is the "user:password" for basic authentication, attached
	// before the first attempt.
	Auth string

	// DigestAuth is the "user:password" for digest authentication.
	// The first attempt is sent bare; a 401 carrying a digest
	// challenge triggers exactly one authorized retry.
	DigestAuth string

	// FollowRedirect enables following 3xx responses, disabled by
	// default.
	FollowRedirect bool

	// MaxRedirects bounds the redirect chain, 10 when nil. An explicit
	// zero allows no hops at all: any 3xx under FollowRedirect fails
	// immediately with TooManyRedirectsError.
	MaxRedirects *int

	// FormatRedirectURL customizes resolution of the Location header
	// before it is parsed against the current URL.
	FormatRedirectURL func(from *url.URL, location string) string

	// BeforeRequest is invoked with the assembled *http.Request before
	// the first attempt is sent.
	BeforeRequest func(req *http.Request)

	// Streaming resolves as soon as the response headers arrive; the
	// body is left on Response.Body as a live stream the caller must
	// close.
	Streaming bool

	// Gzip adds "Accept-Encoding: gzip, br" and decompresses the
	// response body when the server compressed it.
	Gzip bool

	// NestedQuerystring serializes nested maps in Data with the
	// bracket syntax instead of flattening them.
	NestedQuerystring bool

	// Timing collects phase timings into Response.Timing.
	Timing bool

	// WriteStream receives the response body instead of buffering it;
	// Response.Data is nil. With ConsumeWriteStream the request only
	// completes after the sink was flushed and closed.
	WriteStream        io.Writer
	ConsumeWriteStream bool

	// Retry re-issues the whole request up to Retry times while the
	// response status is 500 or above, waiting RetryDelay in between.
	// Requests with stream bodies are never retried.
	Retry      int
	RetryDelay time.Duration

	// TLS options, passed through to the handshake configuration.
	// RejectUnauthorized disables certificate verification when
	// explicitly set to false; nil means verify.
	CA                 []byte
	Pfx                []byte
	Key                []byte
	Cert               []byte
	Passphrase         string
	Ciphers            []uint16
	SecureProtocol     string
	RejectUnauthorized *bool

	// Agent and HTTPSAgent replace the client's shared pooled
	// transports for this request. DisableAgent uses a fresh
	// non-pooled connection instead.
	Agent        *http.Transport
	HTTPSAgent   *http.Transport
	DisableAgent bool

	// Proxy is the tunnel target, used when EnableProxy is set. Proxy
	// tunneling takes precedence over caller-supplied agents.
	Proxy       string
	EnableProxy bool

	// Ctx cancels the request when done.
	Ctx context.Context
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyBuffer
	bodyStream
)

// bodySource is the tagged body variant built once during
// normalization: none, buffered bytes, or a single-use stream.
type bodySource struct {
	kind     bodyKind
	buf      []byte
	stream   io.Reader
	consumed bool
}

func (b *bodySource) replayable() bool {
	return b.kind != bodyStream
}

type authKind int

const (
	authNone authKind = iota
	authBasic
	authDigest
)

type authMode struct {
	kind     authKind
	username string
	password string
}

// requestPlan is the fully resolved description of one logical request.
// It is built once per call and not mutated after the first attempt
// starts, except for the single-use flag on a stream body.
type requestPlan struct {
	ctx     context.Context
	method  string
	url     *url.URL
	headers http.Header
	body    *bodySource

	dataType        string
	fixJSONCtlChars bool
	gzip            bool
	streaming       bool

	writeStream        io.Writer
	consumeWriteStream bool

	connectTimeout  time.Duration
	responseTimeout time.Duration

	followRedirect    bool
	maxRedirects      int
	formatRedirectURL func(from *url.URL, location string) string
	beforeRequest     func(req *http.Request)

	auth authMode

	tlsConfig    *tls.Config
	proxy        *url.URL
	agent        *http.Transport
	httpsAgent   *http.Transport
	disableAgent bool

	timing     bool
	retry      int
	retryDelay time.Duration
}

// mergeOptions merges the per-call options over the instance defaults.
// Precedence is call > instance > library default. Boolean options are
// OR-ed: a flag enabled on the instance cannot be turned back off per
// call.
func mergeOptions(def, opt *RequestOptions) *RequestOptions {
	if def == nil {
		def = &RequestOptions{}
	}
	if opt == nil {
		opt = &RequestOptions{}
	}
	merged := *def
	if opt.Method != "" {
		merged.Method = opt.Method
	}
	if opt.Data != nil {
		merged.Data = opt.Data
	}
	if opt.Content != nil {
		merged.Content = opt.Content
	}
	if opt.Stream != nil {
		merged.Stream = opt.Stream
	}
	if opt.ContentType != "" {
		merged.ContentType = opt.ContentType
	}
	if opt.DataType != "" {
		merged.DataType = opt.DataType
	}
	if len(opt.Headers) > 0 {
		headers := make(map[string]string, len(def.Headers)+len(opt.Headers))
		for k, v := range def.Headers {
			headers[k] = v
		}
		for k, v := range opt.Headers {
			headers[k] = v
		}
		merged.Headers = headers
	}
	if opt.Timeout != nil {
		merged.Timeout = opt.Timeout
	}
	if opt.Auth != "" {
		merged.Auth = opt.Auth
	}
	if opt.DigestAuth != "" {
		merged.DigestAuth = opt.DigestAuth
	}
	if opt.MaxRedirects != nil {
		merged.MaxRedirects = opt.MaxRedirects
	}
	if opt.FormatRedirectURL != nil {
		merged.FormatRedirectURL = opt.FormatRedirectURL
	}
	if opt.BeforeRequest != nil {
		merged.BeforeRequest = opt.BeforeRequest
	}
	if opt.WriteStream != nil {
		merged.WriteStream = opt.WriteStream
	}
	if opt.Retry != 0 {
		merged.Retry = opt.Retry
	}
	if opt.RetryDelay != 0 {
		merged.RetryDelay = opt.RetryDelay
	}
	if opt.CA != nil {
		merged.CA = opt.CA
	}
	if opt.Pfx != nil {
		merged.Pfx = opt.Pfx
	}
	if opt.Key != nil {
		merged.Key = opt.Key
	}
	if opt.Cert != nil {
		merged.Cert = opt.Cert
	}
	if opt.Passphrase != "" {
		merged.Passphrase = opt.Passphrase
	}
	if opt.Ciphers != nil {
		merged.Ciphers = opt.Ciphers
	}
	if opt.SecureProtocol != "" {
		merged.SecureProtocol = opt.SecureProtocol
	}
	if opt.RejectUnauthorized != nil {
		merged.RejectUnauthorized = opt.RejectUnauthorized
	}
	if opt.Agent != nil {
		merged.Agent = opt.Agent
	}
	if opt.HTTPSAgent != nil {
		merged.HTTPSAgent = opt.HTTPSAgent
	}
	if opt.Proxy != "" {
		merged.Proxy = opt.Proxy
	}
	if opt.Ctx != nil {
		merged.Ctx = opt.Ctx
	}
	merged.DataAsQueryString = def.DataAsQueryString || opt.DataAsQueryString
	merged.FixJSONCtlChars = def.FixJSONCtlChars || opt.FixJSONCtlChars
	merged.FollowRedirect = def.FollowRedirect || opt.FollowRedirect
	merged.Streaming = def.Streaming || opt.Streaming
	merged.Gzip = def.Gzip || opt.Gzip
	merged.NestedQuerystring = def.NestedQuerystring || opt.NestedQuerystring
	merged.Timing = def.Timing || opt.Timing
	merged.ConsumeWriteStream = def.ConsumeWriteStream || opt.ConsumeWriteStream
	merged.DisableAgent = def.DisableAgent || opt.DisableAgent
	merged.EnableProxy = def.EnableProxy || opt.EnableProxy
	return &merged
}

// normalizeOptions validates the merged options and resolves them into
// a requestPlan. The body is encoded afterwards by encodeBody.
func normalizeOptions(rawurl string, opts *RequestOptions) (*requestPlan, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, &InvalidOptionError{Option: "url", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &InvalidOptionError{Option: "url", Reason: "scheme must be http or https"}
	}

	plan := &requestPlan{
		url:                u,
		method:             strings.ToUpper(opts.Method),
		dataType:           strings.ToLower(opts.DataType),
		fixJSONCtlChars:    opts.FixJSONCtlChars,
		gzip:               opts.Gzip,
		streaming:          opts.Streaming,
		writeStream:        opts.WriteStream,
		consumeWriteStream: opts.ConsumeWriteStream,
		followRedirect:     opts.FollowRedirect,
		formatRedirectURL:  opts.FormatRedirectURL,
		beforeRequest:      opts.BeforeRequest,
		disableAgent:       opts.DisableAgent,
		agent:              opts.Agent,
		httpsAgent:         opts.HTTPSAgent,
		timing:             opts.Timing,
		retry:              opts.Retry,
		retryDelay:         opts.RetryDelay,
		ctx:                opts.Ctx,
	}
	if plan.method == "" {
		plan.method = http.MethodGet
	}
	switch {
	case opts.MaxRedirects == nil:
		plan.maxRedirects = defaultMaxRedirects
	case *opts.MaxRedirects < 0:
		return nil, &InvalidOptionError{Option: "maxRedirects", Reason: "must not be negative"}
	default:
		plan.maxRedirects = *opts.MaxRedirects
	}
	if plan.ctx == nil {
		plan.ctx = context.Background()
	}

	plan.connectTimeout, plan.responseTimeout, err = resolveTimeout(opts.Timeout)
	if err != nil {
		return nil, err
	}

	if plan.retry < 0 {
		return nil, &InvalidOptionError{Option: "retry", Reason: "must not be negative"}
	}

	if opts.Auth != "" && opts.DigestAuth != "" {
		return nil, &InvalidOptionError{Option: "auth", Reason: "auth and digestAuth are mutually exclusive"}
	}
	switch {
	case opts.Auth != "":
		user, pass, _ := strings.Cut(opts.Auth, ":")
		plan.auth = authMode{kind: authBasic, username: user, password: pass}
	case opts.DigestAuth != "":
		user, pass, ok := strings.Cut(opts.DigestAuth, ":")
		if !ok {
			return nil, &AuthError{Reason: `digestAuth must be in "user:password" form`}
		}
		plan.auth = authMode{kind: authDigest, username: user, password: pass}
	}

	plan.tlsConfig, err = resolveTLSConfig(opts)
	if err != nil {
		return nil, err
	}

	if opts.EnableProxy {
		if util.IsStringEmpty(opts.Proxy) {
			return nil, &InvalidOptionError{Option: "proxy", Reason: "enableProxy is set but proxy is empty"}
		}
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, &InvalidOptionError{Option: "proxy", Reason: err.Error()}
		}
		plan.proxy = proxyURL
	}

	plan.headers = computeHeaders(opts, plan)
	if err := encodeBody(plan, opts); err != nil {
		return nil, err
	}
	if plan.auth.kind == authBasic {
		plan.headers.Set(header.Authorization, util.BasicAuthHeaderValue(plan.auth.username, plan.auth.password))
	}
	return plan, nil
}

func resolveTimeout(timeout []time.Duration) (connect, response time.Duration, err error) {
	connect, response = defaultConnectTimeout, defaultResponseTimeout
	switch len(timeout) {
	case 0:
	case 1:
		connect, response = timeout[0], timeout[0]
	case 2:
		connect, response = timeout[0], timeout[1]
	default:
		return 0, 0, &InvalidOptionError{Option: "timeout", Reason: "at most two values (connect, response)"}
	}
	if connect < 0 || response < 0 {
		return 0, 0, &InvalidOptionError{Option: "timeout", Reason: "must not be negative"}
	}
	if connect == 0 {
		connect = defaultConnectTimeout
	}
	if response == 0 {
		response = defaultResponseTimeout
	}
	return connect, response, nil
}

// computeHeaders builds the header set in fixed order: library defaults,
// then option-derived headers, then the caller's Headers which win
// case-insensitively.
func computeHeaders(opts *RequestOptions, plan *requestPlan) http.Header {
	h := make(http.Header)
	h.Set(header.UserAgent, header.DefaultUserAgent)
	if plan.dataType == "json" {
		h.Set(header.Accept, header.JsonContentType)
	}
	if plan.gzip {
		h.Set(header.AcceptEncoding, "gzip, br")
	}
	for k, v := range opts.Headers {
		h.Set(k, v)
	}
	return h
}
