package urllib

import (
	"crypto/tls"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SoraYama/urllib/internal/tests"
)

func boolPtr(v bool) *bool { return &v }

func pemCertificate(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestResolveTLSConfigUntouched(t *testing.T) {
	config, err := resolveTLSConfig(&RequestOptions{})
	tests.AssertNoError(t, err)
	tests.AssertIsNil(t, config)
}

func TestResolveTLSConfigBadCA(t *testing.T) {
	_, err := resolveTLSConfig(&RequestOptions{CA: []byte("not pem")})
	tests.AssertErrorContains(t, err, "ca")
}

func TestResolveTLSConfigBadPfx(t *testing.T) {
	_, err := resolveTLSConfig(&RequestOptions{
		Pfx:        []byte("not a pkcs12 bundle"),
		Passphrase: "secret",
	})
	var invalid *InvalidOptionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOptionError, got %v", err)
	}
	tests.AssertEqual(t, "pfx", invalid.Option)

	// a bad passphrase on structurally invalid data surfaces the same way
	_, err = resolveTLSConfig(&RequestOptions{Pfx: []byte{0x30, 0x00}})
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOptionError, got %v", err)
	}
}

func TestResolveTLSConfigSecureProtocol(t *testing.T) {
	config, err := resolveTLSConfig(&RequestOptions{SecureProtocol: "TLSv1.2"})
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, uint16(tls.VersionTLS12), config.MinVersion)
	tests.AssertEqual(t, uint16(tls.VersionTLS12), config.MaxVersion)

	// OpenSSL method names map to the same versions
	config, err = resolveTLSConfig(&RequestOptions{SecureProtocol: "TLSv1_2_method"})
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, uint16(tls.VersionTLS12), config.MinVersion)

	_, err = resolveTLSConfig(&RequestOptions{SecureProtocol: "SSLv3"})
	tests.AssertErrorContains(t, err, "secureProtocol")
}

func TestResolveTLSConfigRejectUnauthorized(t *testing.T) {
	config, err := resolveTLSConfig(&RequestOptions{RejectUnauthorized: boolPtr(false)})
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, true, config.InsecureSkipVerify)

	// explicitly asking for verification keeps the default
	config, err = resolveTLSConfig(&RequestOptions{RejectUnauthorized: boolPtr(true)})
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, false, config.InsecureSkipVerify)
}

func TestHTTPSRequestWithoutVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer server.Close()

	// the self-signed certificate fails verification by default
	_, err := tc().Request(server.URL)
	tests.AssertNotNil(t, err)

	res, err := tc().Request(server.URL, &RequestOptions{
		RejectUnauthorized: boolPtr(false),
	})
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, []byte("secure"), res.Data)
}

func TestHTTPSRequestWithCA(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("trusted"))
	}))
	defer server.Close()

	cert := server.Certificate()
	ca := pemCertificate(cert.Raw)
	res, err := tc().Request(server.URL, &RequestOptions{CA: ca})
	tests.AssertNoError(t, err)
	tests.AssertEqual(t, []byte("trusted"), res.Data)
}

func TestAcquireSharedAgents(t *testing.T) {
	c := tc()
	plan, err := normalizeOptions(getTestServerURL(), mergeOptions(nil, nil))
	tests.AssertNoError(t, err)
	transport, ephemeral := c.acquire(plan, plan.url)
	tests.AssertEqual(t, false, ephemeral)
	tests.AssertEqual(t, c.agent, transport)

	plan, err = normalizeOptions("https://example.com", mergeOptions(nil, nil))
	tests.AssertNoError(t, err)
	transport, ephemeral = c.acquire(plan, plan.url)
	tests.AssertEqual(t, false, ephemeral)
	tests.AssertEqual(t, c.httpsAgent, transport)
}

func TestAcquireEphemeralForTLSOptions(t *testing.T) {
	c := tc()
	plan, err := normalizeOptions("https://example.com", mergeOptions(nil, &RequestOptions{
		RejectUnauthorized: boolPtr(false),
	}))
	tests.AssertNoError(t, err)
	transport, ephemeral := c.acquire(plan, plan.url)
	tests.AssertEqual(t, true, ephemeral)
	if transport == c.httpsAgent {
		t.Fatal("expected a derived transport, got the shared agent")
	}
	tests.AssertEqual(t, true, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestAcquireDisableAgent(t *testing.T) {
	c := tc()
	plan, err := normalizeOptions(getTestServerURL(), mergeOptions(nil, &RequestOptions{
		DisableAgent: true,
	}))
	tests.AssertNoError(t, err)
	transport, ephemeral := c.acquire(plan, plan.url)
	tests.AssertEqual(t, true, ephemeral)
	tests.AssertEqual(t, true, transport.DisableKeepAlives)
}

func TestAcquireProxyOverridesCustomAgent(t *testing.T) {
	c := tc()
	custom := newAgent(nil)
	plan, err := normalizeOptions(getTestServerURL(), mergeOptions(nil, &RequestOptions{
		Agent:       custom,
		EnableProxy: true,
		Proxy:       "http://127.0.0.1:8888",
	}))
	tests.AssertNoError(t, err)
	transport, ephemeral := c.acquire(plan, plan.url)
	tests.AssertEqual(t, true, ephemeral)
	tests.AssertNotNil(t, transport.Proxy)
	if transport == custom {
		t.Fatal("proxied request must not run through the custom agent")
	}
}

func TestCustomAgentUsedDirectly(t *testing.T) {
	c := tc()
	custom := newAgent(nil)
	plan, err := normalizeOptions(getTestServerURL(), mergeOptions(nil, &RequestOptions{
		Agent: custom,
	}))
	tests.AssertNoError(t, err)
	transport, ephemeral := c.acquire(plan, plan.url)
	tests.AssertEqual(t, false, ephemeral)
	tests.AssertEqual(t, custom, transport)
}
