package connection

import (
	"context"
	"net"
	"net/http"
	"time"
)

// UnixScheme prefixes server addresses that name a Unix socket.
const UnixScheme = "unix://"

// socketHost is the placeholder host used in URLs sent over a socket.
const socketHost = "http://unix"

// socketTransport returns a transport that dials path for every request.
func socketTransport(path string) *http.Transport {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", path)
		},
		MaxIdleConns:    4,
		IdleConnTimeout: 30 * time.Second,
	}
}
