package urllib

import (
	"crypto/tls"
	"crypto/x509"

	"golang.org/x/crypto/pkcs12"
)

var secureProtocols = map[string]uint16{
	"TLSv1":   tls.VersionTLS10,
	"TLSv1.1": tls.VersionTLS11,
	"TLSv1.2": tls.VersionTLS12,
	"TLSv1.3": tls.VersionTLS13,
	// OpenSSL-style method names kept for compatibility.
	"TLSv1_method":   tls.VersionTLS10,
	"TLSv1_1_method": tls.VersionTLS11,
	"TLSv1_2_method": tls.VersionTLS12,
	"TLSv1_3_method": tls.VersionTLS13,
}

// resolveTLSConfig builds the handshake configuration from the TLS
// options. Returns nil when nothing was customized so the shared pooled
// agent can be used as-is.
func resolveTLSConfig(opts *RequestOptions) (*tls.Config, error) {
	if opts.CA == nil && opts.Pfx == nil && opts.Key == nil && opts.Cert == nil &&
		opts.Ciphers == nil && opts.SecureProtocol == "" && opts.RejectUnauthorized == nil {
		return nil, nil
	}
	config := &tls.Config{}

	if opts.CA != nil {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(opts.CA) {
			return nil, &InvalidOptionError{Option: "ca", Reason: "no certificates found in PEM data"}
		}
		config.RootCAs = pool
	}

	if opts.Cert != nil || opts.Key != nil {
		cert, err := tls.X509KeyPair(opts.Cert, opts.Key)
		if err != nil {
			return nil, &InvalidOptionError{Option: "cert", Reason: err.Error()}
		}
		config.Certificates = append(config.Certificates, cert)
	}

	if opts.Pfx != nil {
		key, cert, err := pkcs12.Decode(opts.Pfx, opts.Passphrase)
		if err != nil {
			return nil, &InvalidOptionError{Option: "pfx", Reason: err.Error()}
		}
		config.Certificates = append(config.Certificates, tls.Certificate{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  key,
			Leaf:        cert,
		})
	}

	if opts.Ciphers != nil {
		config.CipherSuites = opts.Ciphers
	}

	if opts.SecureProtocol != "" {
		version, ok := secureProtocols[opts.SecureProtocol]
		if !ok {
			return nil, &InvalidOptionError{Option: "secureProtocol", Reason: "unknown protocol " + opts.SecureProtocol}
		}
		config.MinVersion = version
		config.MaxVersion = version
	}

	// Skipping verification must be explicit, never the default.
	if opts.RejectUnauthorized != nil && !*opts.RejectUnauthorized {
		config.InsecureSkipVerify = true
	}
	return config, nil
}
