package apns

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"time"

	"golang.org/x/net/http2"
)

const (
	// pingInterval is how long a connection may sit idle before a health ping.
	pingInterval   = 30 * time.Second
	requestTimeout = 30 * time.Second
)

// http2Capable is implemented by custom RoundTrippers that can report
// whether they speak HTTP/2.
type http2Capable interface {
	SupportsHTTP2() bool
}

// clientWithCert builds an HTTP client whose transport presents cert and
// is forced onto HTTP/2.
func clientWithCert(cert tls.Certificate) (*http.Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		ForceAttemptHTTP2: true,
	}
	h2, err := http2.ConfigureTransports(transport)
	if err != nil {
		return nil, fmt.Errorf("failed to configure http2 transport: %w", err)
	}
	h2.ReadIdleTimeout = pingInterval
	return &http.Client{Transport: transport, Timeout: requestTimeout}, nil
}

// supportsHTTP2 is the capability query run before any request is made.
func supportsHTTP2(rt http.RoundTripper) bool {
	switch t := rt.(type) {
	case *http2.Transport:
		return true
	case *http.Transport:
		if t.TLSNextProto != nil {
			// a non-nil map replaces the built-in upgrade entirely
			_, ok := t.TLSNextProto[http2.NextProtoTLS]
			return ok
		}
		if t.Protocols != nil {
			return t.Protocols.HTTP2()
		}
		if t.ForceAttemptHTTP2 {
			return true
		}
		// net/http only enables h2 on its own for an uncustomized transport
		return t.TLSClientConfig == nil && t.Dial == nil && t.DialContext == nil &&
			t.DialTLS == nil && t.DialTLSContext == nil
	case http2Capable:
		return t.SupportsHTTP2()
	}
	return false
}

func transportName(rt http.RoundTripper) string {
	if rt == nil {
		return "<default>"
	}
	return fmt.Sprintf("%T", rt)
}

// debugTrace logs the connection lifecycle of one request.
func debugTrace(logger *slog.Logger, token string) *httptrace.ClientTrace {
	log := logger.With("token", token)
	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			log.Info("Got connection", "reused", info.Reused, "was_idle", info.WasIdle, "idle_time", info.IdleTime)
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err != nil {
				log.Info("TLS handshake failed", "err", err)
				return
			}
			log.Info("TLS handshake done", "protocol", state.NegotiatedProtocol)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err != nil {
				log.Info("Failed to write request", "err", info.Err)
				return
			}
			log.Info("Request written")
		},
		GotFirstResponseByte: func() {
			log.Info("Got first response byte")
		},
	}
}
