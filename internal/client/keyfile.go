package client

import (
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yndnr/thingvault/pkg/crypto/asym"
)

// KeyBlockType is the PEM block type of an app key file.
const KeyBlockType = "THINGVAULT APP KEY"

// ErrNoKeyBlock is returned when a key file holds no app key.
var ErrNoKeyBlock = errors.New("client: no app key block found")

// WriteKeyFile stores keys at path with owner-only permissions. An
// existing file is never overwritten.
func WriteKeyFile(path string, keys *asym.KeyPair) error {
	raw, err := keys.MarshalPrivate()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: KeyBlockType, Bytes: raw}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadKeyFile loads keys written by WriteKeyFile.
func ReadKeyFile(path string) (*asym.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("%s: %w", path, ErrNoKeyBlock)
		}
		if block.Type == KeyBlockType {
			return asym.UnmarshalKeyPair(block.Bytes)
		}
	}
}
