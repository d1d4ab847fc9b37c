package urllib

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/SoraYama/urllib/internal/header"
	"github.com/SoraYama/urllib/internal/util"
)

// encodeBody resolves the mutually exclusive body options into the
// plan's body source and sets the content headers. Precedence is
// stream > content > data. Buffered bodies get an exact Content-Length
// on the wire, stream bodies are sent chunked.
func encodeBody(plan *requestPlan, opts *RequestOptions) error {
	contentType := resolveContentType(opts.ContentType)
	if contentType != "" {
		plan.headers.Set(header.ContentType, contentType)
	}

	switch {
	case opts.Stream != nil:
		plan.body = &bodySource{kind: bodyStream, stream: opts.Stream}
		return nil
	case opts.Content != nil:
		plan.body = &bodySource{kind: bodyBuffer, buf: opts.Content}
		return nil
	case opts.Data == nil:
		plan.body = &bodySource{kind: bodyNone}
		return nil
	}

	if isQueryStringMethod(plan.method) || opts.DataAsQueryString {
		qs, err := serializeData(opts.Data, opts.NestedQuerystring)
		if err != nil {
			return err
		}
		if qs != "" {
			if plan.url.RawQuery == "" {
				plan.url.RawQuery = qs
			} else {
				plan.url.RawQuery += "&" + qs
			}
		}
		plan.body = &bodySource{kind: bodyNone}
		return nil
	}

	if util.IsJSONType(plan.headers.Get(header.ContentType)) {
		buf, err := json.Marshal(opts.Data)
		if err != nil {
			return &InvalidOptionError{Option: "data", Reason: err.Error()}
		}
		plan.body = &bodySource{kind: bodyBuffer, buf: buf}
		return nil
	}

	form, err := serializeData(opts.Data, opts.NestedQuerystring)
	if err != nil {
		return err
	}
	if plan.headers.Get(header.ContentType) == "" {
		plan.headers.Set(header.ContentType, header.FormContentType)
	}
	plan.body = &bodySource{kind: bodyBuffer, buf: []byte(form)}
	return nil
}

func resolveContentType(ct string) string {
	if ct == "" {
		return ""
	}
	if strings.EqualFold(ct, "json") {
		return header.JsonContentType
	}
	return ct
}

func isQueryStringMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
