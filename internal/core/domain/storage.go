package domain

import (
	"time"

	"github.com/yndnr/thingvault/pkg/crypto/asym"
	"github.com/yndnr/thingvault/pkg/token"
)

// Storage is a namespace opened by an app.
type Storage struct {
	keyHolder
	accessClock

	Token string
	ID    string
	App   *App
}

var _ KeyHolder = (*Storage)(nil)

// NewStorage opens storage id for app with a fresh token and key pair.
func NewStorage(app *App, id string, now time.Time) (*Storage, error) {
	tok, err := token.NewStorageToken()
	if err != nil {
		return nil, err
	}
	keys, err := asym.Generate()
	if err != nil {
		return nil, err
	}
	s := &Storage{
		keyHolder: keyHolder{keys: keys},
		Token:     tok,
		ID:        id,
		App:       app,
	}
	s.Touch(now)
	return s, nil
}

// Key returns the backend scope "repositoryId/storageId".
func (s *Storage) Key() string {
	return s.App.Repository.ID + "/" + s.ID
}

// TokenAndPublicKey returns "storageToken,storagePublicKey", the plaintext
// handed to the app when the storage is opened.
func (s *Storage) TokenAndPublicKey() string {
	return s.Token + "," + s.PublicKey().String()
}

// OpenFromApp verifies a payload signed by the owning app and decrypts it.
func (s *Storage) OpenFromApp(sealed Sealed) ([]byte, error) {
	return s.Open(sealed, s.App.PublicKey)
}

// SealForApp encrypts plaintext for the owning app and signs it.
func (s *Storage) SealForApp(plaintext []byte) (Sealed, error) {
	return s.SealFor(s.App.PublicKey, plaintext)
}

// StorageLookupKey builds the registry key for (appToken, storageID).
func StorageLookupKey(appToken, storageID string) string {
	return appToken + "/" + storageID
}
