// Package httpc provides the shared network clients with sensible defaults.
// Use these instead of http.DefaultClient and websocket.DefaultDialer to
// ensure timeouts are set.
package httpc

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
)

// Default timeouts for network operations.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultConnectTimeout   = 10 * time.Second
	DefaultKeepAlive        = 30 * time.Second
	DefaultIdleConnTimeout  = 90 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

func netDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: DefaultKeepAlive,
	}
}

// Client is a shared HTTP client with production-ready defaults.
// OAuth token refreshes go through it.
var Client = NewClient(DefaultTimeout)

// NewClient creates a new HTTP client with the specified timeout.
// For most cases, use the shared Client variable instead.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           netDialer().DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   DefaultHandshakeTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// WebsocketDialer returns a websocket dialer with the shared connect and
// handshake timeouts.
func WebsocketDialer() *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		NetDialContext:   netDialer().DialContext,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

// OAuthContext returns ctx carrying Client for golang.org/x/oauth2 requests.
func OAuthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, Client)
}
