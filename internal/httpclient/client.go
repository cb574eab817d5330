// Package httpclient builds the shared outbound HTTP client and the
// chat-completions requests issued against the target endpoint.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// NewClient returns an http.Client backed by a transport pool sized for the
// configured concurrency plus headroom. The client carries no timeout of its
// own; per-attempt timeouts are enforced through request contexts.
func NewClient(poolSize int, insecureSkipVerify bool) *http.Client {
	if poolSize <= 0 {
		poolSize = 10
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          poolSize,
		MaxIdleConnsPerHost:   poolSize,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{Transport: transport}
}
