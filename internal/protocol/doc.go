// Package protocol defines the command surface of the storage service
// and its text encodings.
//
// Every response is one line of plaintext, obfuscated for transit:
//
//	OK
//	OK,<data>
//	ERROR,<code>,<message>
//
// Commands take positional arguments joined by commas; the last
// argument may itself contain commas.
package protocol
