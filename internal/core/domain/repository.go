package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/yndnr/thingvault/pkg/crypto/asym"
	"github.com/yndnr/thingvault/pkg/token"
)

// Repository is a tenant: the root of one trust chain.
type Repository struct {
	keyHolder
	accessClock

	ID        string
	OwnerID   string
	Name      string
	CreatedOn time.Time
}

var _ KeyHolder = (*Repository)(nil)

// NewRepository creates a repository with a fresh identifier and key pair.
func NewRepository(ownerID, name string, now time.Time) (*Repository, error) {
	keys, err := asym.Generate()
	if err != nil {
		return nil, err
	}
	r := &Repository{
		keyHolder: keyHolder{keys: keys},
		ID:        token.NewRepositoryID(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedOn: now.UTC(),
	}
	r.Touch(now)
	return r, nil
}

// UnwrapAppKey decrypts an app public key that the client encrypted with
// the repository's public key during registration.
func (r *Repository) UnwrapAppKey(ciphertext string) (asym.PublicKey, error) {
	plain, err := asym.Decrypt(r.keys, ciphertext)
	if err != nil {
		return asym.PublicKey{}, fmt.Errorf("decrypt app key: %w", err)
	}
	pub, err := asym.ParsePublicKey(string(plain))
	if err != nil {
		return asym.PublicKey{}, fmt.Errorf("parse app key: %w", err)
	}
	return pub, nil
}

// repositoryRecordVersion is the current RepositoryRecord format.
const repositoryRecordVersion = 1

// RepositoryRecord is the durable form of a Repository.
type RepositoryRecord struct {
	Version    uint16 `cbor:"version"`
	ID         string `cbor:"id"`
	OwnerID    string `cbor:"owner_id"`
	Name       string `cbor:"name,omitempty"`
	PrivateKey []byte `cbor:"private_key"`
	CreatedOn  int64  `cbor:"created_on"`
}

var recordEncMode, _ = cbor.CanonicalEncOptions().EncMode()

// MarshalRecord encodes the repository, including its private key.
func (r *Repository) MarshalRecord() ([]byte, error) {
	priv, err := r.keys.MarshalPrivate()
	if err != nil {
		return nil, err
	}
	return recordEncMode.Marshal(&RepositoryRecord{
		Version:    repositoryRecordVersion,
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Name:       r.Name,
		PrivateKey: priv,
		CreatedOn:  r.CreatedOn.UnixNano(),
	})
}

// UnmarshalRepository restores a repository from MarshalRecord output.
// The restored entity is touched at now.
func UnmarshalRepository(b []byte, now time.Time) (*Repository, error) {
	var rec RepositoryRecord
	if err := cbor.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode repository record: %w", err)
	}
	if rec.Version != repositoryRecordVersion {
		return nil, fmt.Errorf("unsupported repository record version %d", rec.Version)
	}
	if !strings.HasPrefix(rec.ID, token.RepositoryIDPrefix) {
		return nil, fmt.Errorf("invalid repository id %q", rec.ID)
	}
	keys, err := asym.UnmarshalKeyPair(rec.PrivateKey)
	if err != nil {
		return nil, err
	}
	r := &Repository{
		keyHolder: keyHolder{keys: keys},
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		Name:      rec.Name,
		CreatedOn: time.Unix(0, rec.CreatedOn).UTC(),
	}
	r.Touch(now)
	return r, nil
}
