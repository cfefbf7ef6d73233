// Package localserver serves the HTTP API on a Unix domain socket.
//
// The socket is meant for administration from the same host: access is
// controlled by the socket file's permissions, so the server mounts a
// router without the admin token on it. thingvault-cli reaches it with
// --server unix:///path/to/socket.
package localserver
