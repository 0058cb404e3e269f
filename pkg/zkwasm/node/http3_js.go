//go:build js

package node

import (
	"crypto/tls"
	"errors"
	"net/http"
)

func newHTTP3Transport(*tls.Config) (http.RoundTripper, error) {
	return nil, errors.New("node: HTTP/3 is not available in js builds")
}
