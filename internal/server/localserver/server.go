package localserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// DefaultMode keeps the socket to its owner.
const DefaultMode os.FileMode = 0o600

// ErrInUse is returned when another process is serving the socket path.
var ErrInUse = errors.New("localserver: socket in use")

// Options configures a Server.
type Options struct {
	// Mode is applied to the socket file. Zero means DefaultMode.
	Mode   os.FileMode
	Logger *slog.Logger
}

// Server serves an http.Handler on a Unix domain socket.
type Server struct {
	path       string
	mode       os.FileMode
	httpServer *http.Server
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server for socketPath.
func New(socketPath string, handler http.Handler, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	mode := opts.Mode
	if mode == 0 {
		mode = DefaultMode
	}
	return &Server{
		path: socketPath,
		mode: mode,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 30 * time.Second,
			ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		},
		logger: log,
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Listen creates the socket. A stale socket left by a crashed process is
// replaced; a live one fails with ErrInUse.
func (s *Server) Listen() (net.Listener, error) {
	if err := removeStale(s.path); err != nil {
		return nil, err
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(s.path, s.mode); err != nil {
		ln.Close()
		return nil, fmt.Errorf("localserver: chmod %s: %w", s.path, err)
	}
	return ln, nil
}

// ListenAndServe listens and serves until Shutdown. It returns nil after
// a graceful shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("local socket listening", "path", s.path, "mode", fmt.Sprintf("%#o", s.mode))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests,
// bounded by ctx. Closing the listener removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("local socket shutting down", "path", s.path)
	return s.httpServer.Shutdown(ctx)
}

func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("localserver: %s exists and is not a socket", path)
	}
	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		conn.Close()
		return fmt.Errorf("%w: %s", ErrInUse, path)
	}
	return os.Remove(path)
}
