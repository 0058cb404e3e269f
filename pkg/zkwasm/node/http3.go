//go:build !js

package node

import (
	"crypto/tls"
	"net/http"

	"github.com/quic-go/quic-go/http3"
)

func newHTTP3Transport(cfg *tls.Config) (http.RoundTripper, error) {
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS13}
	}
	return &http3.RoundTripper{TLSClientConfig: cfg}, nil
}
