package command

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/thingvault/internal/cli/config"
	"github.com/yndnr/thingvault/internal/cli/connection"
	"github.com/yndnr/thingvault/internal/cli/output"
	"github.com/yndnr/thingvault/internal/infra/buildinfo"
)

const configKey = "cliConfig"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "thingvault-cli",
		Usage:                "thingvault command-line client",
		Version:              buildinfo.Get().Version,
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			ConnectCommand(),
			DisconnectCommand(),
			UseCommand(),
			ConnectionsCommand(),
			StatusCommand(),
			KeygenCommand(),
			NewClientCommand(),
			RegisterCommand(),
			OpenCommand(),
			StoreCommand(),
			GetCommand(),
			ExistsCommand(),
			ModifiedCommand(),
			DiscardCommand(),
			FindCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if c.App.Metadata == nil {
				c.App.Metadata = map[string]any{}
			}
			c.App.Metadata[configKey] = cfg
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI configuration file",
			EnvVars: []string{"THINGVAULT_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address (host:port, http(s)://host:port or unix:///path)",
			EnvVars: []string{"THINGVAULT_SERVER"},
		},
		&cli.StringFlag{
			Name:    "connection",
			Aliases: []string{"c"},
			Usage:   "saved connection profile",
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "admin token required by newclient",
			EnvVars: []string{"THINGVAULT_ADMIN_TOKEN"},
		},
		&cli.StringFlag{Name: "ca-file", Usage: "PEM bundle of trusted server CAs"},
		&cli.StringFlag{Name: "tls-cert", Usage: "client certificate for mutual TLS"},
		&cli.StringFlag{Name: "tls-key", Usage: "client certificate key for mutual TLS"},
		&cli.StringFlag{Name: "server-name", Usage: "override the TLS server name"},
		&cli.BoolFlag{Name: "insecure", Usage: "skip TLS verification (development only)"},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "request timeout",
			Value: connection.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show wide output (more columns)",
		},
	}
}

// GlobalFlags holds the parsed global flags.
type GlobalFlags struct {
	Config     string
	Server     string
	Connection string
	AdminToken string
	CAFile     string
	TLSCert    string
	TLSKey     string
	ServerName string
	Insecure   bool
	Output     string
	Wide       bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:     c.String("config"),
		Server:     c.String("server"),
		Connection: c.String("connection"),
		AdminToken: c.String("admin-token"),
		CAFile:     c.String("ca-file"),
		TLSCert:    c.String("tls-cert"),
		TLSKey:     c.String("tls-key"),
		ServerName: c.String("server-name"),
		Insecure:   c.Bool("insecure"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
	}
}

// cliConfig returns the configuration loaded in Before.
func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[configKey].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// saveConfig persists the CLI configuration.
func saveConfig(c *cli.Context) error {
	return config.Save(cliConfig(c), c.String("config"))
}

// resolveConnection merges the selected profile with the global flags.
// Explicit flags win over the profile. profile names the fallback used
// when neither --server nor --connection is given.
func resolveConnection(c *cli.Context, profile string) (*connection.Connection, error) {
	flags := ParseGlobalFlags(c)
	cfg := cliConfig(c)

	conn := &connection.Connection{Server: cfg.DefaultServer, Timeout: c.Duration("timeout")}

	name := flags.Connection
	if name == "" && flags.Server == "" {
		name = profile
	}
	if name != "" || flags.Server == "" {
		saved, ok := cfg.Connection(name)
		if !ok && name != "" {
			return nil, fmt.Errorf("unknown connection %q", name)
		}
		if ok {
			if name == "" {
				name = cfg.CurrentConnection
			}
			conn.Name = name
			conn.Server = saved.Server
			conn.AdminToken = saved.AdminToken
			conn.CAFile = saved.CAFile
			conn.CertFile = saved.CertFile
			conn.KeyFile = saved.KeyFile
			conn.ServerName = saved.ServerName
			conn.Insecure = saved.Insecure
		}
	}

	override(&conn.Server, flags.Server)
	override(&conn.AdminToken, flags.AdminToken)
	override(&conn.CAFile, flags.CAFile)
	override(&conn.CertFile, flags.TLSCert)
	override(&conn.KeyFile, flags.TLSKey)
	override(&conn.ServerName, flags.ServerName)
	if flags.Insecure {
		conn.Insecure = true
	}
	return conn, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// dial resolves the connection and builds its client.
func dial(c *cli.Context, profile string) (*connection.HTTPClient, error) {
	conn, err := resolveConnection(c, profile)
	if err != nil {
		return nil, err
	}
	return connection.Dial(conn)
}

// commandContext bounds one command by the --timeout flag.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("timeout"))
}

// outputFormat returns the --output format, falling back to the saved
// default.
func outputFormat(c *cli.Context) (output.Format, error) {
	f := ParseGlobalFlags(c).Output
	if f == "" {
		f = cliConfig(c).DefaultOutput
	}
	return output.ParseFormat(f)
}

// printResult writes data in the selected output format.
func printResult(c *cli.Context, data any) error {
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, ParseGlobalFlags(c).Wide).Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	return c.App.Writer
}
