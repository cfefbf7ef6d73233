package config

import "time"

// ServerConfig is the root configuration for thingvault-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Manager  ManagerSection  `koanf:"manager"`
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP            HTTPConfig    `koanf:"http"`
	Local           LocalConfig   `koanf:"local"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LocalConfig configures the Unix socket listener. Requests on the socket
// skip the admin token; the file mode controls who may connect.
type LocalConfig struct {
	// SocketPath enables the listener when set.
	SocketPath string `koanf:"socket_path"`
	// SocketMode is the socket file permission, e.g. 0660.
	SocketMode uint32 `koanf:"socket_mode"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`

	TLSCertFile     string `koanf:"tls_cert_file"`
	TLSKeyFile      string `koanf:"tls_key_file"`
	TLSClientCAFile string `koanf:"tls_client_ca_file"`

	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
	// TrustProxy honours X-Forwarded-For when identifying clients.
	TrustProxy bool `koanf:"trust_proxy"`

	// BodyLimit caps request bodies in bytes.
	BodyLimit int64 `koanf:"body_limit"`

	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// TLSEnabled reports whether the listener serves HTTPS.
func (c HTTPConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" || c.TLSKeyFile != ""
}

// ManagerSection configures the session manager.
type ManagerSection struct {
	// ID names this manager; durable repository records live under it.
	ID string `koanf:"id"`
	// EntityTTL is how long an idle repository, app or storage stays cached.
	EntityTTL time.Duration `koanf:"entity_ttl"`
}

// StorageSection configures the thing backend.
type StorageSection struct {
	// Backend is fs, sql or badger.
	Backend string `koanf:"backend"`

	// EncryptionKey is a base64 master key for at-rest encryption.
	EncryptionKey string `koanf:"encryption_key"`
	// Cipher pins the AEAD (aes-gcm or chacha20-poly1305).
	Cipher   string `koanf:"cipher"`
	Compress bool   `koanf:"compress"`

	FS     FSSection     `koanf:"fs"`
	SQL    SQLSection    `koanf:"sql"`
	Badger BadgerSection `koanf:"badger"`
}

// FSSection configures the filesystem backend.
type FSSection struct {
	Root string `koanf:"root"`
}

// SQLSection configures the relational backend.
type SQLSection struct {
	// Driver is sqlite or pgx.
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// BadgerSection configures the embedded KV backend.
type BadgerSection struct {
	Dir         string        `koanf:"dir"`
	InMemory    bool          `koanf:"in_memory"`
	GCInterval  time.Duration `koanf:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold"`
	CacheSize   int64         `koanf:"cache_size"`
	SyncWrites  bool          `koanf:"sync_writes"`
}

// SecuritySection configures access control.
type SecuritySection struct {
	// AdminToken guards newclient. Empty leaves it open.
	AdminToken string `koanf:"admin_token"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
