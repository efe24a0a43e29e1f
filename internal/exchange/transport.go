package exchange

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// lowLatencyTransport builds an http.RoundTripper tuned for latency-sensitive
// order submission: TCP_NODELAY via a short-keepalive dialer, forced HTTP/2
// where the server supports it, and a pooled idle-connection cache so the
// hot submission path never pays a fresh handshake.
func lowLatencyTransport() http.RoundTripper {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	// http2.ConfigureTransport wires the protocol-negotiated HTTP/2 RoundTripper
	// in rather than relying on the opportunistic upgrade; ignored on error
	// since the plain HTTP/1.1 transport above still functions.
	_ = http2.ConfigureTransport(transport)
	return transport
}
