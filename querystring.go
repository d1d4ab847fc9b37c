package urllib

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
)

// serializeData turns the Data option into an URL-encoded form string.
// Maps use the flat serializer by default, or the bracket-syntax nested
// serializer when nestedQuerystring is set. Struct values (and pointers
// to structs) are serialized through their `url` tags.
func serializeData(data interface{}, nested bool) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case url.Values:
		return v.Encode(), nil
	case map[string]string:
		m := make(map[string]interface{}, len(v))
		for k, item := range v {
			m[k] = item
		}
		if nested {
			return encodeNested(m), nil
		}
		return encodeFlat(m), nil
	case map[string]interface{}:
		if nested {
			return encodeNested(v), nil
		}
		return encodeFlat(v), nil
	default:
		values, err := query.Values(data)
		if err != nil {
			return "", &InvalidOptionError{Option: "data", Reason: err.Error()}
		}
		return values.Encode(), nil
	}
}

// encodeFlat serializes one level of keys. Nested maps and other
// composite values are stringified with fmt.Sprint, which loses their
// structure. Callers that need the structure back must use the nested
// serializer.
func encodeFlat(data map[string]interface{}) string {
	values := url.Values{}
	for k, v := range data {
		switch vv := v.(type) {
		case []string:
			for _, item := range vv {
				values.Add(k, item)
			}
		case []interface{}:
			for _, item := range vv {
				values.Add(k, fmt.Sprint(item))
			}
		default:
			values.Add(k, fmt.Sprint(v))
		}
	}
	return values.Encode()
}

// encodeNested serializes arbitrarily nested maps and slices with the
// bracket syntax: {a: {b: 1}} becomes "a[b]=1", {a: [x, y]} becomes
// "a[0]=x&a[1]=y".
func encodeNested(data map[string]interface{}) string {
	values := url.Values{}
	for k, v := range data {
		nestedAdd(values, k, v)
	}
	return values.Encode()
}

func nestedAdd(values url.Values, prefix string, v interface{}) {
	switch vv := v.(type) {
	case map[string]interface{}:
		for k, item := range vv {
			nestedAdd(values, prefix+"["+k+"]", item)
		}
	case map[string]string:
		for k, item := range vv {
			values.Add(prefix+"["+k+"]", item)
		}
	case []interface{}:
		for i, item := range vv {
			nestedAdd(values, fmt.Sprintf("%s[%d]", prefix, i), item)
		}
	case []string:
		for i, item := range vv {
			values.Add(fmt.Sprintf("%s[%d]", prefix, i), item)
		}
	default:
		values.Add(prefix, fmt.Sprint(v))
	}
}

// decodeNested parses a bracket-syntax query string back into nested
// maps. Leaf values come back as strings, scalar types are not
// recovered. Inverse of encodeNested up to that stringification.
func decodeNested(qs string) (map[string]interface{}, error) {
	values, err := url.ParseQuery(qs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{})
	for key, vals := range values {
		path := bracketPath(key)
		for _, val := range vals {
			nestedInsert(out, path, val)
		}
	}
	return out, nil
}

// bracketPath splits "a[b][0]" into ["a", "b", "0"].
func bracketPath(key string) []string {
	open := strings.IndexByte(key, '[')
	if open < 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}
	path := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			// malformed tail, keep it as a literal segment
			path = append(path, rest)
			break
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			path = append(path, rest[1:])
			break
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return path
}

func nestedInsert(m map[string]interface{}, path []string, val string) {
	if len(path) == 1 {
		m[path[0]] = val
		return
	}
	child, ok := m[path[0]].(map[string]interface{})
	if !ok {
		child = make(map[string]interface{})
		m[path[0]] = child
	}
	nestedInsert(child, path[1:], val)
}
