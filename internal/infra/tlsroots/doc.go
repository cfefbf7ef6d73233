// Package tlsroots builds the TLS configurations used by thingvault.
//
// The server side serves a certificate that is reloaded from disk when
// the files change (CertReloader). The client side trusts either the
// system roots or a pinned CA bundle (ClientConfig).
package tlsroots
