package admin

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// TLSConfig configures an https admin endpoint. CertFile and KeyFile are
// only needed when the admin listener requires client certificates.
type TLSConfig struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
}

func (t TLSConfig) enabled() bool {
	return t != TLSConfig{}
}

func (t TLSConfig) build() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}

	if caPath := strings.TrimSpace(t.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("admin: read tls ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("admin: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}

	certPath, keyPath := strings.TrimSpace(t.CertFile), strings.TrimSpace(t.KeyFile)
	if (certPath == "") != (keyPath == "") {
		return nil, fmt.Errorf("admin: tls cert and key must be set together")
	}
	if certPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("admin: load tls client cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func (t TLSConfig) httpClient(opts Options) (*http.Client, error) {
	tlsCfg, err := t.build()
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	return &http.Client{Timeout: opts.RequestTimeout, Transport: transport}, nil
}
