package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/yndnr/thingvault/internal/core/service"
	"github.com/yndnr/thingvault/internal/infra/buildinfo"
	"github.com/yndnr/thingvault/internal/infra/confloader"
	"github.com/yndnr/thingvault/internal/infra/shutdown"
	"github.com/yndnr/thingvault/internal/infra/tlsroots"
	"github.com/yndnr/thingvault/internal/server/config"
	"github.com/yndnr/thingvault/internal/server/httpserver"
	"github.com/yndnr/thingvault/internal/server/localserver"
	"github.com/yndnr/thingvault/internal/storage"
	"github.com/yndnr/thingvault/internal/telemetry/logger"
	"github.com/yndnr/thingvault/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		checkOnly   = flag.Bool("check", false, "Validate the configuration and exit")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("thingvault-server %s\n", buildinfo.String())
		return nil
	}

	loader := confloader.NewLoader(confloader.WithConfigFile(*configFile))
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkOnly {
		fmt.Println("configuration OK")
		return nil
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := logger.Slog(log)

	info := buildinfo.Get()
	log.Info("starting thingvault-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx := context.Background()
	db, err := initStorage(ctx, cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	metrics := metric.NewRegistry()
	if b, ok := db.(*storage.Badger); ok {
		b.RegisterMetrics(metrics.Registerer())
	}

	manager, err := service.NewManager(cfg.Manager.ID, db,
		service.WithEntityTTL(cfg.Manager.EntityTTL),
		service.WithLogger(log),
		service.WithMetrics(metrics),
	)
	if err != nil {
		db.Close()
		return fmt.Errorf("init manager: %w", err)
	}

	routerConfig := httpserver.RouterConfig{
		Service:    manager,
		Logger:     slogLogger,
		Metrics:    metrics,
		AdminToken: cfg.Security.AdminToken,
		BodyLimit:  cfg.Server.HTTP.BodyLimit,
		RateLimit:  cfg.Server.HTTP.RateLimit,
		RateBurst:  cfg.Server.HTTP.RateBurst,
		TrustProxy: cfg.Server.HTTP.TrustProxy,
		Ready:      manager.Ready,
	}
	router := httpserver.NewRouter(&routerConfig)
	if cfg.Security.AdminToken == "" {
		log.Warn("security.admin_token is not set; anyone can create repositories")
	}

	opts := httpserver.Options{
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
		Logger:       slogLogger,
	}

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout,
		shutdown.WithHookObserver(func(name string, err error) {
			if err != nil {
				log.Error("shutdown step failed", "step", name, "error", err)
				return
			}
			log.Info("shutdown step done", "step", name)
		}),
	)

	// Hooks run in reverse: the listener stops before storage closes.
	shutdownHandler.OnShutdown("storage", func(context.Context) error {
		return db.Close()
	})

	if cfg.Server.HTTP.TLSEnabled() {
		certs, err := tlsroots.NewCertReloader(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile, slogLogger)
		if err != nil {
			db.Close()
			return err
		}
		if err := certs.Watch(); err != nil {
			log.Warn("certificate files are not watched", "error", err)
		}
		shutdownHandler.OnShutdown("certificates", func(context.Context) error {
			return certs.Stop()
		})
		if opts.TLSConfig, err = tlsroots.ServerConfig(certs, cfg.Server.HTTP.TLSClientCAFile); err != nil {
			db.Close()
			return err
		}
	}

	if *configFile != "" {
		watcher, err := watchConfig(loader, *configFile, log, slogLogger)
		if err != nil {
			log.Warn("configuration file is not watched", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	if path := cfg.Server.Local.SocketPath; path != "" {
		// The socket is guarded by its file mode, not the admin token.
		local := routerConfig
		local.AdminToken = ""
		local.RateLimit = 0
		if err := serveLocal(path, cfg.Server.Local.SocketMode, httpserver.NewRouter(&local), slogLogger, shutdownHandler); err != nil {
			db.Close()
			return err
		}
	}

	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router, opts)
	shutdownHandler.OnShutdown("http", httpServer.Shutdown)

	go func() {
		log.Info("HTTP server listening",
			"addr", cfg.Server.HTTP.Addr,
			"tls", opts.TLSConfig != nil,
			"backend", cfg.Storage.Backend)
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig layers the file and the environment over the defaults.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger and makes it the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// initStorage opens the configured backend.
func initStorage(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger) (storage.Db, error) {
	t, err := cfg.Storage.Transform()
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, cfg.Storage.BackendConfig(), t, log)
}

// watchConfig reloads the file on change. Only the log level is applied
// live; other changes are reported and need a restart.
func watchConfig(loader *confloader.Loader, path string, log logger.Logger, slogLogger *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(slogLogger))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		next := config.Default()
		if err := loader.Reload(next); err != nil {
			log.Error("configuration reload failed", "error", err)
			return
		}
		if err := config.Verify(next); err != nil {
			log.Error("reloaded configuration is invalid", "error", err)
			return
		}
		if next.Log.Level != logger.GetLevel() {
			logger.SetLevel(next.Log.Level)
			log.Info("log level changed", "level", next.Log.Level)
		}
		log.Info("configuration reloaded; settings other than log.level apply after restart")
	})
	w.StartAsync()
	return w, nil
}

// serveLocal starts the Unix socket listener.
func serveLocal(path string, mode uint32, handler http.Handler, log *slog.Logger, h *shutdown.Handler) error {
	local := localserver.New(path, handler, localserver.Options{Mode: os.FileMode(mode), Logger: log})
	ln, err := local.Listen()
	if err != nil {
		return fmt.Errorf("local socket: %w", err)
	}
	h.OnShutdown("local socket", local.Shutdown)
	go func() {
		if err := local.Serve(ln); err != nil {
			log.Error("local socket error", "error", err)
			h.Trigger()
		}
	}()
	return nil
}
