package localserver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// socketPath stays short: sun_path is limited to about 100 bytes.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tvsock")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "api.sock")
}

func unixClient(path string) *http.Client {
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		},
	}}
}

func start(t *testing.T, path string, opts Options) *Server {
	t.Helper()
	s := New(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pong")
	}), opts)
	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Shutdown(ctx)
		if err := <-done; err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	})
	return s
}

func TestServe(t *testing.T) {
	path := socketPath(t)
	start(t, path, Options{})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != DefaultMode {
		t.Errorf("mode = %v, want %v", info.Mode().Perm(), DefaultMode)
	}

	resp, err := unixClient(path).Get("http://unix/ping")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pong" {
		t.Errorf("body = %q, want pong", body)
	}
}

func TestMode(t *testing.T) {
	path := socketPath(t)
	start(t, path, Options{Mode: 0o660})
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o660 {
		t.Errorf("mode = %v, want 0660", info.Mode().Perm())
	}
}

func TestListen_InUse(t *testing.T) {
	path := socketPath(t)
	start(t, path, Options{})

	_, err := New(path, http.NotFoundHandler(), Options{}).Listen()
	if !errors.Is(err, ErrInUse) {
		t.Errorf("Listen() error = %v, want ErrInUse", err)
	}
}

func TestListen_ReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	// Leave the file behind, as a crashed process would.
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	ln.Close()

	start(t, path, Options{})
}

func TestListen_NotASocket(t *testing.T) {
	path := socketPath(t)
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path, http.NotFoundHandler(), Options{}).Listen(); err == nil {
		t.Error("Listen() over a regular file succeeded")
	}
}

func TestShutdown_RemovesSocket(t *testing.T) {
	path := socketPath(t)
	s := New(path, http.NotFoundHandler(), Options{})
	ln, err := s.Listen()
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()
	time.Sleep(20 * time.Millisecond)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("socket still present: %v", err)
	}
}
