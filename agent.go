package urllib

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"
)

// newAgent creates one pooled transport. The client owns two of them,
// one per scheme, created at construction and torn down by Close.
// Compression is handled by the response decoder, not the transport.
func newAgent(tlsConfig *tls.Config) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
		TLSClientConfig:       tlsConfig,
	}
}

// acquire selects the transport for one attempt. The boolean reports an
// ephemeral transport whose idle connections must be closed when the
// logical request is done.
//
// Plain and TLS attempts draw from the shared pooled agents unless the
// caller supplied its own agent or disabled pooling. A derived transport
// is used when the plan carries TLS or proxy parameters the shared agent
// does not have; proxy tunneling takes precedence over caller-supplied
// agents.
func (c *HttpClient) acquire(plan *requestPlan, u *url.URL) (rt *http.Transport, ephemeral bool) {
	base := c.agent
	if u.Scheme == "https" {
		base = c.httpsAgent
		if plan.httpsAgent != nil {
			base = plan.httpsAgent
		}
	} else if plan.agent != nil {
		base = plan.agent
	}

	if plan.proxy == nil && plan.tlsConfig == nil && !plan.disableAgent {
		return base, false
	}

	if plan.proxy != nil && (plan.agent != nil || plan.httpsAgent != nil) {
		// Tunneling through the shared agent configuration, the custom
		// agent is ignored for proxied requests.
		base = c.agent
		if u.Scheme == "https" {
			base = c.httpsAgent
		}
	}

	derived := base.Clone()
	if plan.tlsConfig != nil {
		derived.TLSClientConfig = plan.tlsConfig
	}
	if plan.proxy != nil {
		derived.Proxy = http.ProxyURL(plan.proxy)
	}
	if plan.disableAgent {
		derived.DisableKeepAlives = true
	}
	return derived, true
}
