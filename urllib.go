package urllib

import "context"

var defaultHttpClient = NewHttpClient()

// DefaultHttpClient returns the global default HttpClient.
func DefaultHttpClient() *HttpClient {
	return defaultHttpClient
}

// SetDefaultHttpClient override the global default HttpClient.
func SetDefaultHttpClient(c *HttpClient) {
	if c != nil {
		defaultHttpClient = c
	}
}

// Request is a global wrapper which delegated to the default client's
// Request.
func Request(url string, opts ...*RequestOptions) (*Response, error) {
	return defaultHttpClient.Request(url, opts...)
}

// RequestWithContext is a global wrapper which delegated to the default
// client's RequestWithContext.
func RequestWithContext(ctx context.Context, url string, opts ...*RequestOptions) (*Response, error) {
	return defaultHttpClient.RequestWithContext(ctx, url, opts...)
}

// Curl is a pure alias of Request.
func Curl(url string, opts ...*RequestOptions) (*Response, error) {
	return defaultHttpClient.Request(url, opts...)
}

// RequestWithCallback is a global wrapper which delegated to the default
// client's RequestWithCallback.
func RequestWithCallback(url string, opts *RequestOptions, cb Callback) {
	defaultHttpClient.RequestWithCallback(url, opts, cb)
}

// RequestThunk is a global wrapper which delegated to the default
// client's RequestThunk.
func RequestThunk(url string, opts *RequestOptions) func(Callback) {
	return defaultHttpClient.RequestThunk(url, opts)
}
