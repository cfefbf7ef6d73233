package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yndnr/thingvault/internal/infra/tlsroots"
)

// Connection describes how to reach a server.
type Connection struct {
	Name       string
	Server     string
	AdminToken string
	CAFile     string
	CertFile   string
	KeyFile    string
	ServerName string
	Insecure   bool
	Timeout    time.Duration
}

// Health is the body of the server's /health endpoint.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// Manager holds the active connection.
type Manager struct {
	current *Connection
	client  *HTTPClient
}

// NewManager creates a new connection manager.
func NewManager() *Manager {
	return &Manager{}
}

// Dial builds a client for conn without contacting the server.
func Dial(conn *Connection) (*HTTPClient, error) {
	tlsConfig, err := tlsroots.ClientConfig(tlsroots.ClientOptions{
		CAFile:             conn.CAFile,
		CertFile:           conn.CertFile,
		KeyFile:            conn.KeyFile,
		ServerName:         conn.ServerName,
		InsecureSkipVerify: conn.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}
	return NewHTTPClient(conn.Server, Options{
		TLSConfig:  tlsConfig,
		AdminToken: conn.AdminToken,
		Timeout:    conn.Timeout,
	})
}

// Connect dials conn, probes its health endpoint and makes it current.
func (m *Manager) Connect(ctx context.Context, conn *Connection) (*Health, error) {
	client, err := Dial(conn)
	if err != nil {
		return nil, err
	}
	health, err := Probe(ctx, client)
	if err != nil {
		return nil, err
	}
	m.current = conn
	m.client = client
	return health, nil
}

// Probe fetches /health.
func Probe(ctx context.Context, client *HTTPClient) (*Health, error) {
	resp, err := client.Get(ctx, "/health")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("parse health: %w", err)
	}
	return &h, nil
}

// Disconnect forgets the current connection.
func (m *Manager) Disconnect() {
	m.current = nil
	m.client = nil
}

// Current returns the current connection.
func (m *Manager) Current() *Connection {
	return m.current
}

// Client returns the client of the current connection.
func (m *Manager) Client() *HTTPClient {
	return m.client
}

// IsConnected returns true if connected to a server.
func (m *Manager) IsConnected() bool {
	return m.current != nil
}
