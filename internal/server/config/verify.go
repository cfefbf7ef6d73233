package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/thingvault/internal/storage"
	"github.com/yndnr/thingvault/internal/telemetry/logger"
	"github.com/yndnr/thingvault/pkg/token"
)

// Verify validates the configuration. All problems are reported at once.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyManager(&cfg.Manager),
		verifyStorage(&cfg.Storage),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.http.addr: %w", err))
	}
	if cfg.HTTP.TLSEnabled() && (cfg.HTTP.TLSCertFile == "" || cfg.HTTP.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.http: tls_cert_file and tls_key_file must be set together"))
	}
	if cfg.HTTP.TLSClientCAFile != "" && !cfg.HTTP.TLSEnabled() {
		errs = append(errs, errors.New("server.http.tls_client_ca_file requires TLS"))
	}
	if cfg.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("server.http.rate_limit must not be negative"))
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst < 1 {
		errs = append(errs, errors.New("server.http.rate_burst must be at least 1"))
	}
	if cfg.HTTP.BodyLimit <= 0 {
		errs = append(errs, errors.New("server.http.body_limit must be positive"))
	}
	if cfg.Local.SocketMode > 0o777 {
		errs = append(errs, fmt.Errorf("server.local.socket_mode %#o is not a permission mode", cfg.Local.SocketMode))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

func verifyManager(cfg *ManagerSection) error {
	var errs []error
	if strings.HasPrefix(cfg.ID, token.RepositoryIDPrefix) {
		errs = append(errs, fmt.Errorf("manager.id must not start with %q", token.RepositoryIDPrefix))
	} else if err := storage.ValidateStorageKey(storage.ScopeKey(cfg.ID, "repositories")); err != nil {
		errs = append(errs, fmt.Errorf("manager.id: %w", err))
	}
	if cfg.EntityTTL <= 0 {
		errs = append(errs, errors.New("manager.entity_ttl must be positive"))
	}
	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error
	switch cfg.Backend {
	case storage.BackendFS:
		if cfg.FS.Root == "" {
			errs = append(errs, errors.New("storage.fs.root is required"))
		}
	case storage.BackendSQL:
		if cfg.SQL.Driver != storage.DriverSQLite && cfg.SQL.Driver != storage.DriverPostgres {
			errs = append(errs, fmt.Errorf("storage.sql.driver %q: want %s or %s",
				cfg.SQL.Driver, storage.DriverSQLite, storage.DriverPostgres))
		}
		if cfg.SQL.DSN == "" {
			errs = append(errs, errors.New("storage.sql.dsn is required"))
		}
	case storage.BackendBadger:
		if cfg.Badger.Dir == "" && !cfg.Badger.InMemory {
			errs = append(errs, errors.New("storage.badger.dir is required"))
		}
		if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
			errs = append(errs, errors.New("storage.badger.gc_threshold must be in (0, 1)"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: want fs, sql or badger", cfg.Backend))
	}
	// Transform validates the key and the cipher name.
	if _, err := cfg.Transform(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	var errs []error
	if !logger.ValidLevel(cfg.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not a known level", cfg.Level))
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json or text", cfg.Format))
	}
	return errors.Join(errs...)
}
