package config

import (
	"fmt"

	"github.com/yndnr/thingvault/internal/storage"
	"github.com/yndnr/thingvault/internal/storage/atrest"
	"github.com/yndnr/thingvault/pkg/crypto/adaptive"
)

// BackendConfig converts the section to storage.Config.
func (s StorageSection) BackendConfig() storage.Config {
	badger := storage.DefaultBadgerConfig()
	badger.Dir = s.Badger.Dir
	badger.InMemory = s.Badger.InMemory
	badger.GCInterval = s.Badger.GCInterval
	badger.GCThreshold = s.Badger.GCThreshold
	badger.CacheSize = s.Badger.CacheSize
	badger.SyncWrites = s.Badger.SyncWrites

	return storage.Config{
		Backend: s.Backend,
		FS:      storage.FSConfig{Root: s.FS.Root},
		SQL: storage.SQLConfig{
			Driver:          s.SQL.Driver,
			DSN:             s.SQL.DSN,
			MaxOpenConns:    s.SQL.MaxOpenConns,
			MaxIdleConns:    s.SQL.MaxIdleConns,
			ConnMaxLifetime: s.SQL.ConnMaxLifetime,
		},
		Badger: badger,
	}
}

// Transform builds the at-rest transform described by the section.
func (s StorageSection) Transform() (*atrest.Transform, error) {
	opts := atrest.Options{Compress: s.Compress}
	if s.EncryptionKey != "" {
		key, err := adaptive.ParseKey(s.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("storage.encryption_key: %w", err)
		}
		opts.MasterKey = key
	}
	if s.Cipher != "" {
		ct, err := adaptive.ParseCipherType(s.Cipher)
		if err != nil {
			return nil, fmt.Errorf("storage.cipher: %w", err)
		}
		opts.Cipher = ct
	}
	return atrest.New(opts)
}
