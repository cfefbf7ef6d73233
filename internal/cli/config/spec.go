package config

// CLIConfig is the configuration for thingvault-cli.
type CLIConfig struct {
	DefaultServer string `yaml:"default_server"`
	DefaultOutput string `yaml:"default_output"` // table, json, yaml

	// Saved connections
	Connections map[string]ConnectionConfig `yaml:"connections"`

	// Current active connection
	CurrentConnection string `yaml:"current_connection"`

	// Apps registered from this machine, by name.
	Apps map[string]AppConfig `yaml:"apps"`
}

// ConnectionConfig stores saved connection details.
type ConnectionConfig struct {
	Server     string `yaml:"server"`
	AdminToken string `yaml:"admin_token,omitempty"`
	CAFile     string `yaml:"ca_file,omitempty"`
	CertFile   string `yaml:"cert_file,omitempty"`
	KeyFile    string `yaml:"key_file,omitempty"`
	ServerName string `yaml:"server_name,omitempty"`
	Insecure   bool   `yaml:"insecure,omitempty"`
}

// AppConfig remembers what an app needs to register again.
type AppConfig struct {
	Connection    string `yaml:"connection,omitempty"`
	RepositoryID  string `yaml:"repository_id"`
	RepositoryKey string `yaml:"repository_key"`
	KeyFile       string `yaml:"key_file"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultServer: "http://localhost:5080",
		DefaultOutput: "table",
		Connections:   make(map[string]ConnectionConfig),
		Apps:          make(map[string]AppConfig),
	}
}

// Connection returns the named profile, or the current one when name is
// empty.
func (c *CLIConfig) Connection(name string) (ConnectionConfig, bool) {
	if name == "" {
		name = c.CurrentConnection
	}
	if name == "" {
		return ConnectionConfig{}, false
	}
	conn, ok := c.Connections[name]
	return conn, ok
}
