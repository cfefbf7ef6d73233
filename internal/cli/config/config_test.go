package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultServer != "http://localhost:5080" {
		t.Errorf("DefaultServer = %q, want %q", cfg.DefaultServer, "http://localhost:5080")
	}
	if cfg.DefaultOutput != "table" {
		t.Errorf("DefaultOutput = %q, want %q", cfg.DefaultOutput, "table")
	}
	if cfg.Connections == nil || cfg.Apps == nil {
		t.Error("maps should not be nil")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if !filepath.IsAbs(path) {
		t.Errorf("DefaultConfigPath() = %q, want absolute", path)
	}
	if want := filepath.Join(".thingvault", "cli.yaml"); !strings.HasSuffix(path, want) {
		t.Errorf("DefaultConfigPath() = %q, should end with %q", path, want)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultServer != "http://localhost:5080" {
		t.Error("Load() should return defaults for a missing file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("connections: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "cli.yaml")

	cfg := Default()
	cfg.DefaultOutput = "json"
	cfg.CurrentConnection = "prod"
	cfg.Connections["prod"] = ConnectionConfig{
		Server:     "https://vault.example.com:5443",
		AdminToken: "secret",
		CAFile:     "/etc/thingvault/ca.pem",
	}
	cfg.Apps["notes"] = AppConfig{
		Connection:    "prod",
		RepositoryID:  "tvrp-abc",
		RepositoryKey: "key",
		KeyFile:       "/home/u/.thingvault/notes.pem",
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.DefaultOutput != "json" || got.CurrentConnection != "prod" {
		t.Errorf("Load() = %+v", got)
	}
	if got.Connections["prod"] != cfg.Connections["prod"] {
		t.Errorf("connection = %+v, want %+v", got.Connections["prod"], cfg.Connections["prod"])
	}
	if got.Apps["notes"] != cfg.Apps["notes"] {
		t.Errorf("app = %+v, want %+v", got.Apps["notes"], cfg.Apps["notes"])
	}
}

func TestConnection(t *testing.T) {
	cfg := Default()
	cfg.Connections["dev"] = ConnectionConfig{Server: "localhost:5080"}

	if _, ok := cfg.Connection(""); ok {
		t.Error("Connection(\"\") found a profile with no current connection")
	}
	if c, ok := cfg.Connection("dev"); !ok || c.Server != "localhost:5080" {
		t.Errorf("Connection(dev) = %+v, %v", c, ok)
	}
	cfg.CurrentConnection = "dev"
	if _, ok := cfg.Connection(""); !ok {
		t.Error("Connection(\"\") should fall back to the current connection")
	}
	if _, ok := cfg.Connection("prod"); ok {
		t.Error("Connection(prod) should not exist")
	}
}
