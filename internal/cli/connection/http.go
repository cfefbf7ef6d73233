package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/thingvault/internal/infra/buildinfo"
	"github.com/yndnr/thingvault/internal/protocol"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps response bodies read by the client.
const maxResponseSize = 64 << 20

// StatusError reports a non-200 HTTP answer. Protocol failures travel
// inside 200 responses and are returned as domain errors instead.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server answered %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server answered %d: %s", e.StatusCode, e.Message)
}

// Options configures an HTTPClient.
type Options struct {
	// TLSConfig is used for https:// servers.
	TLSConfig *tls.Config
	// AdminToken is sent as a bearer token.
	AdminToken string
	Timeout    time.Duration
}

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL    string
	client     *http.Client
	adminToken string
	userAgent  string
}

// NewHTTPClient creates a new HTTP client for server.
func NewHTTPClient(server string, opts Options) (*HTTPClient, error) {
	if server == "" {
		return nil, errors.New("connection: server address is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &HTTPClient{
		adminToken: opts.AdminToken,
		userAgent:  buildinfo.UserAgent(),
		client:     &http.Client{Timeout: timeout},
	}

	switch {
	case strings.HasPrefix(server, UnixScheme):
		path := strings.TrimPrefix(server, UnixScheme)
		if path == "" {
			return nil, errors.New("connection: unix socket path is empty")
		}
		c.baseURL = socketHost
		c.client.Transport = socketTransport(path)
	case strings.HasPrefix(server, "https://"):
		c.baseURL = server
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = opts.TLSConfig
		c.client.Transport = transport
	case strings.HasPrefix(server, "http://"):
		c.baseURL = server
	default:
		c.baseURL = "http://" + server
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c, nil
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Do sends one command and decodes the response envelope. A failure
// envelope is returned as a response, not as an error.
func (c *HTTPClient) Do(ctx context.Context, method, path, body string) (*protocol.Response, error) {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	out, err := protocol.DecodeResponse(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Get performs a GET request and returns the raw response.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, path, "")
}

func (c *HTTPClient) send(ctx context.Context, method, path, body string) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.addHeaders(req)
	if body != "" {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// addHeaders adds authentication and common headers.
func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}
	req.Header.Set("User-Agent", c.userAgent)
}
