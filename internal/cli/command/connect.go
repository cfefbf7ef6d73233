package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/thingvault/internal/cli/config"
	"github.com/yndnr/thingvault/internal/cli/connection"
)

// ConnectCommand saves a connection profile after probing the server.
func ConnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Save a connection profile and make it current",
		ArgsUsage: "NAME SERVER",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-probe", Usage: "save without contacting the server"},
		},
		Action: runConnect,
	}
}

func runConnect(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("connect requires NAME and SERVER", 1)
	}
	name, server := c.Args().Get(0), c.Args().Get(1)
	flags := ParseGlobalFlags(c)

	conn := &connection.Connection{
		Name:       name,
		Server:     server,
		AdminToken: flags.AdminToken,
		CAFile:     flags.CAFile,
		CertFile:   flags.TLSCert,
		KeyFile:    flags.TLSKey,
		ServerName: flags.ServerName,
		Insecure:   flags.Insecure,
		Timeout:    c.Duration("timeout"),
	}

	if !c.Bool("no-probe") {
		ctx, cancel := commandContext(c)
		defer cancel()
		health, err := connection.NewManager().Connect(ctx, conn)
		if err != nil {
			return fmt.Errorf("connect %s: %w", server, err)
		}
		fmt.Fprintf(writer(c), "Connected to %s (%s, version %s)\n", server, health.Status, health.Version)
	}

	cfg := cliConfig(c)
	cfg.Connections[name] = config.ConnectionConfig{
		Server:     conn.Server,
		AdminToken: conn.AdminToken,
		CAFile:     conn.CAFile,
		CertFile:   conn.CertFile,
		KeyFile:    conn.KeyFile,
		ServerName: conn.ServerName,
		Insecure:   conn.Insecure,
	}
	cfg.CurrentConnection = name
	if err := saveConfig(c); err != nil {
		return err
	}
	fmt.Fprintf(writer(c), "Connection %q saved\n", name)
	return nil
}

// UseCommand switches the current connection.
func UseCommand() *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "Make a saved connection current",
		ArgsUsage: "NAME",
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			cfg := cliConfig(c)
			if _, ok := cfg.Connections[name]; !ok {
				return fmt.Errorf("unknown connection %q", name)
			}
			cfg.CurrentConnection = name
			if err := saveConfig(c); err != nil {
				return err
			}
			fmt.Fprintf(writer(c), "Using connection %q\n", name)
			return nil
		},
	}
}

// DisconnectCommand clears the current connection, or removes a profile.
func DisconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Clear the current connection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "forget", Usage: "also delete the named profile"},
		},
		Action: func(c *cli.Context) error {
			cfg := cliConfig(c)
			if name := c.String("forget"); name != "" {
				if _, ok := cfg.Connections[name]; !ok {
					return fmt.Errorf("unknown connection %q", name)
				}
				delete(cfg.Connections, name)
				if cfg.CurrentConnection == name {
					cfg.CurrentConnection = ""
				}
			} else {
				cfg.CurrentConnection = ""
			}
			return saveConfig(c)
		},
	}
}

// ConnectionInfo is one row of the connections listing.
type ConnectionInfo struct {
	Name     string `json:"name"`
	Server   string `json:"server"`
	Current  bool   `json:"current"`
	TLS      string `json:"tls" table:"wide"`
	HasToken bool   `json:"admin_token" table:"wide"`
}

// ConnectionsCommand lists saved connections.
func ConnectionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "connections",
		Usage: "List saved connections",
		Action: func(c *cli.Context) error {
			cfg := cliConfig(c)
			names := make([]string, 0, len(cfg.Connections))
			for name := range cfg.Connections {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([]ConnectionInfo, 0, len(names))
			for _, name := range names {
				conn := cfg.Connections[name]
				rows = append(rows, ConnectionInfo{
					Name:     name,
					Server:   conn.Server,
					Current:  name == cfg.CurrentConnection,
					TLS:      tlsMode(conn),
					HasToken: conn.AdminToken != "",
				})
			}
			return printResult(c, rows)
		},
	}
}

func tlsMode(conn config.ConnectionConfig) string {
	switch {
	case conn.Insecure:
		return "insecure"
	case conn.CertFile != "":
		return "mutual"
	case conn.CAFile != "":
		return "custom-ca"
	default:
		return "system"
	}
}

// StatusInfo is the status command output.
type StatusInfo struct {
	Connection string `json:"connection"`
	Server     string `json:"server"`
	Status     string `json:"status"`
	Version    string `json:"version"`
	Time       string `json:"time" table:"wide"`
}

// StatusCommand probes the server health endpoint.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show server health",
		Action: func(c *cli.Context) error {
			conn, err := resolveConnection(c, "")
			if err != nil {
				return err
			}
			client, err := connection.Dial(conn)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()
			health, err := connection.Probe(ctx, client)
			if err != nil {
				return fmt.Errorf("status %s: %w", conn.Server, err)
			}
			return printResult(c, StatusInfo{
				Connection: conn.Name,
				Server:     conn.Server,
				Status:     health.Status,
				Version:    health.Version,
				Time:       health.Time,
			})
		},
	}
}
