// Package httpserver serves the storage protocol over HTTP and HTTPS.
//
// Routes:
//
//   - Storage commands: /api/storage/{command}/...
//   - Health endpoints: /health, /ready
//   - Prometheus metrics: /metrics
//
// Storage commands pass through Recover, RequestID, RateLimit and
// AccessLog. TLS certificates are served through a tlsroots.CertReloader
// so they can be rotated without a restart.
package httpserver
