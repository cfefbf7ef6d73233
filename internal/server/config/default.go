package config

import (
	"time"

	"github.com/yndnr/thingvault/internal/core/service"
	"github.com/yndnr/thingvault/internal/storage"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultRateLimit       = 200
	DefaultRateBurst       = 400
	DefaultBodyLimit       = 16 << 20
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 2 * time.Minute

	DefaultManagerID = "thingvault"

	DefaultBackend   = storage.BackendFS
	DefaultFSRoot    = "/var/lib/thingvault/things"
	DefaultSQLDriver = storage.DriverSQLite
	DefaultSQLDSN    = "/var/lib/thingvault/things.db"
	DefaultBadgerDir = "/var/lib/thingvault/badger"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	badger := storage.DefaultBadgerConfig()
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:         DefaultHTTPAddr,
				RateLimit:    DefaultRateLimit,
				RateBurst:    DefaultRateBurst,
				BodyLimit:    DefaultBodyLimit,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
				IdleTimeout:  DefaultIdleTimeout,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Manager: ManagerSection{
			ID:        DefaultManagerID,
			EntityTTL: service.DefaultEntityTTL,
		},
		Storage: StorageSection{
			Backend: DefaultBackend,
			FS:      FSSection{Root: DefaultFSRoot},
			SQL: SQLSection{
				Driver: DefaultSQLDriver,
				DSN:    DefaultSQLDSN,
			},
			Badger: BadgerSection{
				Dir:         DefaultBadgerDir,
				GCInterval:  badger.GCInterval,
				GCThreshold: badger.GCThreshold,
				CacheSize:   badger.CacheSize,
				SyncWrites:  badger.SyncWrites,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
