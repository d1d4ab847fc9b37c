package urllib

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/SoraYama/urllib/internal/header"
)

func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// resolveRedirect resolves the Location header of a 3xx response
// against the current URL. An absolute Location wins, a relative one is
// resolved against the current base. The formatRedirectURL hook runs on
// the raw Location value first. Returns nil when the response carries
// no Location.
func resolveRedirect(plan *requestPlan, current *url.URL, resp *http.Response) (*url.URL, error) {
	location := resp.Header.Get(header.Location)
	if location == "" {
		return nil, nil
	}
	if plan.formatRedirectURL != nil {
		location = plan.formatRedirectURL(current, location)
	}
	target, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("urllib: invalid redirect location %q: %w", location, err)
	}
	return current.ResolveReference(target), nil
}

// redirectMethod returns the method and whether the body survives the
// hop. 301/302 downgrade body-bearing methods to GET and drop the body
// (browser-compatible), 303 always becomes GET, 307/308 preserve both.
func redirectMethod(code int, method string) (next string, keepBody bool) {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound:
		if method == http.MethodPost || method == http.MethodPut {
			return http.MethodGet, false
		}
		return method, true
	case http.StatusSeeOther:
		return http.MethodGet, false
	}
	return method, true
}
