package gateway

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TLSFiles locates optional PEM material for the API connection. An empty
// CAFile keeps the system roots; CertFile and KeyFile enable client
// certificates and must be set together.
type TLSFiles struct {
	CAFile   string
	CertFile string
	KeyFile  string
}

// NewHTTPClient builds the client used by the gateway. The timeout bounds a
// whole call; it is the only timeout applied to requests.
func NewHTTPClient(files TLSFiles, timeout time.Duration) (*http.Client, error) {
	if (files.CertFile == "") != (files.KeyFile == "") {
		return nil, errors.New("client cert and key must be set together")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if files.CAFile != "" || files.CertFile != "" {
		cfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if files.CAFile != "" {
			caCert, err := os.ReadFile(files.CAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA cert: %w", err)
			}
			caPool := x509.NewCertPool()
			if !caPool.AppendCertsFromPEM(caCert) {
				return nil, errors.New("failed to parse CA cert")
			}
			cfg.RootCAs = caPool
		}
		if files.CertFile != "" {
			cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load client cert/key: %w", err)
			}
			cfg.Certificates = []tls.Certificate{cert}
		}
		transport.TLSClientConfig = cfg
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
