// Package logger is thingvault's structured logging, built on log/slog.
//
// Every logger New returns shares one level, which a config reload can
// change with SetLevel. App and storage tokens are masked wherever they
// are logged, attributes whose key names a secret are dropped, and
// records logged with a request context carry its request_id.
//
// Badger and net/http take the *slog.Logger returned by Slog.
package logger
