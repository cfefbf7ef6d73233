// Package token generates the secrets and identifiers handed out by the
// storage manager.
//
// Token format:
//
//   - Prefix: tvat_ for app tokens, tvst_ for storage tokens
//   - Body: 43 characters of Base64 RawURL encoded random bytes
//
// Identifier format:
//
//   - Prefix: tvrp- for repositories
//   - Body: lower-case ULID (26 characters), sortable by creation time
//
// Tokens never appear in logs in clear. Use Fingerprint to correlate them.
package token
