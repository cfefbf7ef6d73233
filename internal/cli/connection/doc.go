// Package connection manages the CLI's link to a thingvault server.
//
//   - http.go: HTTP/HTTPS transport speaking the envelope protocol
//   - socket.go: transport over the server's Unix socket
//   - manager.go: connection profile validation and health probing
//
// Server addresses take the forms host:port, http://host:port,
// https://host:port and unix:///path/to/socket.
package connection
