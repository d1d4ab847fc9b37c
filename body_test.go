package urllib

import (
	"strings"
	"testing"

	"github.com/SoraYama/urllib/internal/header"
	"github.com/SoraYama/urllib/internal/tests"
)

func TestEncodeBodyJSON(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Method:      "POST",
		ContentType: "json",
		Data:        map[string]interface{}{"hello": "world"},
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, bodyBuffer, plan.body.kind)
	tests.AssertEqual(t, `{"hello":"world"}`, string(plan.body.buf))
	tests.AssertEqual(t, header.JsonContentType, plan.headers.Get(header.ContentType))
}

func TestEncodeBodyForm(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Method: "POST",
		Data:   map[string]string{"a": "1", "b": "2"},
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "a=1&b=2", string(plan.body.buf))
	tests.AssertEqual(t, header.FormContentType, plan.headers.Get(header.ContentType))
}

func TestEncodeBodyGetDataGoesToQuery(t *testing.T) {
	plan, err := normalizeOptions("http://example.com/search?q=base", mergeOptions(nil, &RequestOptions{
		Data: map[string]string{"page": "2"},
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, bodyNone, plan.body.kind)
	tests.AssertEqual(t, "q=base&page=2", plan.url.RawQuery)
}

func TestEncodeBodyDataAsQueryString(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Method:            "POST",
		Data:              map[string]string{"token": "x"},
		DataAsQueryString: true,
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, bodyNone, plan.body.kind)
	tests.AssertEqual(t, "token=x", plan.url.RawQuery)
}

func TestEncodeBodyStreamWins(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Method:  "POST",
		Stream:  strings.NewReader("streamed"),
		Content: []byte("buffered"),
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, bodyStream, plan.body.kind)
	tests.AssertEqual(t, false, plan.body.replayable())
}

func TestEncodeBodyCustomContentTypePassthrough(t *testing.T) {
	plan, err := normalizeOptions("http://example.com", mergeOptions(nil, &RequestOptions{
		Method:      "POST",
		ContentType: "text/csv",
		Content:     []byte("a,b\n1,2\n"),
	}))
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, "text/csv", plan.headers.Get(header.ContentType))
}

func TestResolveContentType(t *testing.T) {
	tests.AssertEqual(t, "", resolveContentType(""))
	tests.AssertEqual(t, header.JsonContentType, resolveContentType("json"))
	tests.AssertEqual(t, header.JsonContentType, resolveContentType("JSON"))
	tests.AssertEqual(t, "application/xml", resolveContentType("application/xml"))
}
