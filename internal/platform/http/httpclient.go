// Package http holds HTTP plumbing shared by outbound clients and the gin router.
package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient builds the client used for chain gateway calls.
//
// http.DefaultClient has no timeout, so every outbound caller goes through this.
// Dial and TLS handshakes get short fixed limits; timeout bounds the whole request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
