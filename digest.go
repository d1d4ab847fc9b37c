package urllib

import (
	"net/http"
	"strings"
	"sync"

	"github.com/icholy/digest"

	"github.com/SoraYama/urllib/internal/header"
)

// challengeCache stores digest challenges across logical requests,
// keyed by host and realm. Entries carry their own lock so concurrent
// requests to the same realm do not race on the nonce counter.
type challengeCache struct {
	mu      sync.Mutex
	entries map[string]*challengeEntry
	byHost  map[string]string // host -> key of the last stored realm
}

type challengeEntry struct {
	mu    sync.Mutex
	chal  *digest.Challenge
	count int
}

func newChallengeCache() *challengeCache {
	return &challengeCache{
		entries: make(map[string]*challengeEntry),
		byHost:  make(map[string]string),
	}
}

func (c *challengeCache) store(host string, chal *digest.Challenge) *challengeEntry {
	key := host + "|" + chal.Realm
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &challengeEntry{}
		c.entries[key] = entry
	}
	entry.mu.Lock()
	entry.chal = chal
	entry.count = 0
	entry.mu.Unlock()
	c.byHost[host] = key
	return entry
}

// lookup returns the entry for the host's last seen realm, nil when the
// host never produced a challenge.
func (c *challengeCache) lookup(host string) *challengeEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.byHost[host]
	if !ok {
		return nil
	}
	return c.entries[key]
}

// authorize computes the Digest Authorization header value for req,
// advancing the entry's nonce count under its lock.
func (e *challengeEntry) authorize(req *http.Request, auth authMode) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count++
	cred, err := digest.Digest(e.chal, digest.Options{
		Username: auth.username,
		Password: auth.password,
		Method:   req.Method,
		URI:      req.URL.RequestURI(),
		GetBody:  req.GetBody,
		Count:    e.count,
	})
	if err != nil {
		return "", &AuthError{Reason: "compute digest response", Err: err}
	}
	return cred.String(), nil
}

// hasDigestChallenge reports whether the 401 response carries a digest
// challenge at all. A 401 without one is a terminal response, not an
// auth protocol exchange.
func hasDigestChallenge(resp *http.Response) bool {
	for _, v := range resp.Header.Values(header.WwwAuthenticate) {
		if strings.HasPrefix(strings.TrimSpace(v), "Digest ") {
			return true
		}
	}
	return false
}

// parseChallenge extracts and validates the digest challenge from a 401
// response.
func parseChallenge(resp *http.Response) (*digest.Challenge, error) {
	chal, err := digest.FindChallenge(resp.Header)
	if err != nil {
		return nil, &AuthError{Reason: "bad digest challenge", Err: err}
	}
	if chal.Realm == "" || chal.Nonce == "" {
		return nil, &AuthError{Reason: "digest challenge is missing realm or nonce"}
	}
	return chal, nil
}
