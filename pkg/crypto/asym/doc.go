// Package asym is the asymmetric layer of the handshake.
//
// A KeyPair carries two keys: a hybrid X25519+Kyber768 KEM key for
// encryption and an Ed25519 key for signatures. Both public halves travel
// together as one base64url string.
//
// The four operations compose independently:
//
//	ct, _ := asym.Encrypt(peer, []byte("secret"))   // for the peer's eyes only
//	sig := asym.Sign(self, ct)                        // proves origin
//	ok := asym.Verify(self.Public, ct, sig)
//	pt, _ := asym.Decrypt(peerKeys, ct)
//
// Every textual output is base64url without padding and never contains a
// comma, so values can be joined with "," on the wire.
package asym
