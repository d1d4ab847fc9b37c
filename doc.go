// Package urllib is a general-purpose HTTP/HTTPS request client with
// result-style and callback-style entry points over shared pooled
// connections.
//
// The simplest call buffers the body and returns it on the response:
//
//	res, err := urllib.Request("https://example.com/api", &urllib.RequestOptions{
//		DataType: "json",
//	})
//	if err != nil {
//		// transport-level failure: connect, timeout, redirect loop, ...
//	}
//	fmt.Println(res.StatusCode, res.Data)
//
// The callback convention delivers the same outcome asynchronously:
//
//	urllib.RequestWithCallback("https://example.com", nil, func(err error, data interface{}, res *urllib.Response) {
//		// called exactly once
//	})
//
// Non-2xx statuses are responses, not errors. Timeouts are enforced per
// phase: the connect deadline runs until the request is fully written,
// the response deadline from there until the body is fully received.
// See RequestOptions for redirects, basic/digest auth, gzip decoding,
// streaming, proxies and TLS parameters.
package urllib
