package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/thingvault/internal/cli/config"
	"github.com/yndnr/thingvault/internal/cli/output"
	"github.com/yndnr/thingvault/internal/infra/buildinfo"
	"github.com/yndnr/thingvault/internal/infra/confloader"
	serverconfig "github.com/yndnr/thingvault/internal/server/config"
)

// ConfigCommand inspects CLI and server configuration.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "cli",
				Usage: "CLI configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the CLI configuration with tokens redacted",
						Action: runConfigShow,
					},
					{
						Name:      "set",
						Usage:     "Set default_server or default_output",
						ArgsUsage: "KEY VALUE",
						Action:    runConfigSet,
					},
				},
			},
			{
				Name:  "server",
				Usage: "Server configuration",
				Subcommands: []*cli.Command{
					{
						Name:      "test",
						Usage:     "Validate a server configuration file",
						ArgsUsage: "FILE",
						Action:    runConfigTest,
					},
				},
			},
		},
	}
}

func runConfigShow(c *cli.Context) error {
	cfg := *cliConfig(c)
	cfg.Connections = make(map[string]cliconfig.ConnectionConfig, len(cliConfig(c).Connections))
	for name, conn := range cliConfig(c).Connections {
		if conn.AdminToken != "" {
			conn.AdminToken = "redacted"
		}
		cfg.Connections[name] = conn
	}

	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		format = output.FormatYAML
	}
	return output.NewFormatter(format, false).Format(writer(c), cfg)
}

func runConfigSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("set requires KEY and VALUE", 1)
	}
	cfg := cliConfig(c)
	key, value := c.Args().Get(0), c.Args().Get(1)
	switch key {
	case "default_server":
		cfg.DefaultServer = value
	case "default_output":
		if _, err := output.ParseFormat(value); err != nil {
			return err
		}
		cfg.DefaultOutput = value
	default:
		return fmt.Errorf("unknown key %q (want default_server or default_output)", key)
	}
	return saveConfig(c)
}

// ServerConfigSummary is printed by config server test.
type ServerConfigSummary struct {
	File       string `json:"file"`
	Addr       string `json:"addr"`
	TLS        bool   `json:"tls"`
	Backend    string `json:"backend"`
	ManagerID  string `json:"manager_id"`
	EntityTTL  string `json:"entity_ttl"`
	Encrypted  bool   `json:"encrypted"`
	AdminToken string `json:"admin_token"`
	LogLevel   string `json:"log_level" table:"wide"`
}

func runConfigTest(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("test requires a configuration FILE", 1)
	}
	cfg := serverconfig.Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		return err
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return fmt.Errorf("%s: invalid configuration:\n%w", path, err)
	}

	s := serverconfig.Sanitize(cfg)
	admin := s.Security.AdminToken
	if admin == "" {
		admin = "none (newclient is open)"
	}
	return printResult(c, ServerConfigSummary{
		File:       path,
		Addr:       s.Server.HTTP.Addr,
		TLS:        s.Server.HTTP.TLSEnabled(),
		Backend:    s.Storage.Backend,
		ManagerID:  s.Manager.ID,
		EntityTTL:  s.Manager.EntityTTL.String(),
		Encrypted:  s.Storage.EncryptionKey != "",
		AdminToken: admin,
		LogLevel:   s.Log.Level,
	})
}

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			return printResult(c, buildinfo.Get())
		},
	}
}
