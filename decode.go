package urllib

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/SoraYama/urllib/internal/header"
)

// decodeBody consumes the response body according to the plan: inflate,
// pipe to the write stream or buffer, then decode per dataType. The
// returned data is []byte by default, string for "text" and the
// unmarshalled value for "json". Size is the number of decoded body
// bytes.
func decodeBody(plan *requestPlan, resp *http.Response, body io.ReadCloser) (data interface{}, size int64, err error) {
	reader, err := inflate(plan, resp, body)
	if err != nil {
		body.Close()
		return nil, 0, err
	}

	if plan.writeStream != nil {
		size, err = pipeToWriteStream(plan, reader, body)
		return nil, size, err
	}

	raw, err := io.ReadAll(reader)
	closeErr := body.Close()
	if err != nil {
		return nil, 0, err
	}
	if closeErr != nil {
		return nil, 0, closeErr
	}
	size = int64(len(raw))

	switch plan.dataType {
	case "json":
		v, err := decodeJSON(raw, plan.fixJSONCtlChars)
		return v, size, err
	case "text":
		return decodeText(raw, resp.Header.Get(header.ContentType)), size, nil
	default:
		return raw, size, nil
	}
}

// inflate wraps the body with the matching decompressor when the
// response was compressed and the caller asked for gzip handling. The
// encoding headers are dropped afterwards so the response reflects the
// bytes the caller actually sees.
func inflate(plan *requestPlan, resp *http.Response, body io.ReadCloser) (io.Reader, error) {
	if !plan.gzip {
		return body, nil
	}
	switch strings.ToLower(resp.Header.Get(header.ContentEncoding)) {
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		resp.Header.Del(header.ContentEncoding)
		resp.Header.Del(header.ContentLength)
		return gz, nil
	case "br":
		resp.Header.Del(header.ContentEncoding)
		resp.Header.Del(header.ContentLength)
		return brotli.NewReader(body), nil
	}
	return body, nil
}

func pipeToWriteStream(plan *requestPlan, reader io.Reader, body io.ReadCloser) (int64, error) {
	size, err := io.Copy(plan.writeStream, reader)
	closeErr := body.Close()
	if err != nil {
		return size, err
	}
	if closeErr != nil {
		return size, closeErr
	}
	// Completion waits for the sink only when the caller asked for it.
	if plan.consumeWriteStream {
		if closer, ok := plan.writeStream.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				return size, err
			}
		}
	}
	return size, nil
}

func decodeJSON(raw []byte, fixCtlChars bool) (interface{}, error) {
	buf := raw
	if fixCtlChars {
		buf = fixJSONCtlChars(raw)
	}
	var v interface{}
	if err := json.Unmarshal(buf, &v); err != nil {
		parseErr := &JSONParseError{Raw: raw, Err: err}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			parseErr.Offset = syntaxErr.Offset
		}
		return nil, parseErr
	}
	return v, nil
}

// fixJSONCtlChars protects the whitespace control characters by
// escaping them and strips every other raw control character, so bodies
// that embed them inside string values survive the parser.
func fixJSONCtlChars(raw []byte) []byte {
	if bytes.IndexFunc(raw, func(r rune) bool { return r < 0x20 }) < 0 {
		return raw
	}
	var out bytes.Buffer
	out.Grow(len(raw))
	for _, b := range raw {
		if b >= 0x20 {
			out.WriteByte(b)
			continue
		}
		switch b {
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case '\t':
			out.WriteString(`\t`)
		}
	}
	return out.Bytes()
}

// decodeText decodes the body using the charset the response declared,
// falling back to content sniffing and finally to treating the bytes as
// UTF-8.
func decodeText(raw []byte, contentType string) string {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label != "" {
		enc, err := htmlindex.Get(label)
		if err == nil && enc != nil && enc != unicode.UTF8 {
			if decoded, err := enc.NewDecoder().Bytes(raw); err == nil {
				return string(decoded)
			}
		}
		return string(raw)
	}
	enc, name, _ := htmlcharset.DetermineEncoding(raw, contentType)
	if enc == nil || name == "utf-8" {
		return string(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
