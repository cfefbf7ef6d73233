package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/thingvault/internal/cli/config"
	"github.com/yndnr/thingvault/internal/client"
	"github.com/yndnr/thingvault/pkg/crypto/asym"
)

// KeyInfo is the keygen output.
type KeyInfo struct {
	KeyFile   string `json:"key_file"`
	PublicKey string `json:"public_key"`
}

// KeygenCommand creates an app key file.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate an app key pair",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "key file to create", Required: true},
		},
		Action: func(c *cli.Context) error {
			keys, err := asym.Generate()
			if err != nil {
				return err
			}
			path := c.String("out")
			if err := client.WriteKeyFile(path, keys); err != nil {
				return err
			}
			return printResult(c, KeyInfo{KeyFile: path, PublicKey: keys.Public.String()})
		},
	}
}

// NewClientCommand provisions a repository.
func NewClientCommand() *cli.Command {
	return &cli.Command{
		Name:  "newclient",
		Usage: "Create a repository (requires the admin token when the server sets one)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Usage: "owner recorded with the repository"},
			&cli.StringFlag{Name: "save", Usage: "save the repository as an app profile with this name"},
			&cli.StringFlag{Name: "key", Usage: "app key file for the saved profile (created when missing)"},
		},
		Action: runNewClient,
	}
}

func runNewClient(c *cli.Context) error {
	name := c.String("save")
	if name != "" && c.String("key") == "" {
		return cli.Exit("--save requires --key", 1)
	}

	t, err := dial(c, "")
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	repo, err := client.NewRepository(ctx, t, c.String("owner"))
	if err != nil {
		return err
	}
	if name != "" {
		keys, err := loadOrCreateKeys(c.String("key"))
		if err != nil {
			return err
		}
		app, err := client.Register(ctx, t, repo, keys)
		if err != nil {
			return err
		}
		if err := saveApp(c, name, repo, c.String("key")); err != nil {
			return err
		}
		return printResult(c, appInfo(name, app))
	}
	return printResult(c, repo)
}

// AppInfo describes a registered app.
type AppInfo struct {
	Name         string `json:"name,omitempty"`
	RepositoryID string `json:"repository_id"`
	Token        string `json:"app_token"`
	PublicKey    string `json:"repository_key" table:"wide"`
}

func appInfo(name string, app *client.App) AppInfo {
	return AppInfo{
		Name:         name,
		RepositoryID: app.Repository().ID,
		Token:        app.Token(),
		PublicKey:    app.Repository().PublicKey,
	}
}

// RegisterCommand registers an app key with a repository.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Register an app key with a repository",
		Flags: append(appFlags(),
			&cli.StringFlag{Name: "save", Usage: "save the registration as an app profile with this name"},
		),
		Action: func(c *cli.Context) error {
			profile, err := appProfile(c)
			if err != nil {
				return err
			}
			app, err := registerApp(c, profile)
			if err != nil {
				return err
			}
			name := c.String("save")
			if name != "" {
				if err := saveApp(c, name, app.Repository(), profile.KeyFile); err != nil {
					return err
				}
			}
			if name == "" {
				name = c.String("app")
			}
			return printResult(c, appInfo(name, app))
		},
	}
}

// appFlags select an app either by profile or explicitly.
func appFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "app", Aliases: []string{"a"}, Usage: "saved app profile", EnvVars: []string{"THINGVAULT_APP"}},
		&cli.StringFlag{Name: "repository", Usage: "repository id"},
		&cli.StringFlag{Name: "repository-key", Usage: "repository public key"},
		&cli.StringFlag{Name: "key", Usage: "app key file"},
	}
}

// appProfile merges the --app profile with explicit flags.
func appProfile(c *cli.Context) (config.AppConfig, error) {
	var p config.AppConfig
	if name := c.String("app"); name != "" {
		saved, ok := cliConfig(c).Apps[name]
		if !ok {
			return p, fmt.Errorf("unknown app %q", name)
		}
		p = saved
	}
	override(&p.RepositoryID, c.String("repository"))
	override(&p.RepositoryKey, c.String("repository-key"))
	override(&p.KeyFile, c.String("key"))

	switch {
	case p.RepositoryID == "":
		return p, cli.Exit("no repository: use --app or --repository", 1)
	case p.RepositoryKey == "":
		return p, cli.Exit("no repository key: use --app or --repository-key", 1)
	case p.KeyFile == "":
		return p, cli.Exit("no app key: use --app or --key", 1)
	}
	return p, nil
}

// registerApp registers the profile's key. Registration is idempotent,
// so every command registers again rather than caching app tokens that
// the server may have expired.
func registerApp(c *cli.Context, p config.AppConfig) (*client.App, error) {
	keys, err := client.ReadKeyFile(p.KeyFile)
	if err != nil {
		return nil, err
	}
	t, err := dial(c, p.Connection)
	if err != nil {
		return nil, err
	}
	ctx, cancel := commandContext(c)
	defer cancel()
	repo := client.Repository{ID: p.RepositoryID, PublicKey: p.RepositoryKey}
	return client.Register(ctx, t, repo, keys)
}

func saveApp(c *cli.Context, name string, repo client.Repository, keyFile string) error {
	cfg := cliConfig(c)
	conn := c.String("connection")
	if conn == "" && c.String("server") == "" {
		conn = cfg.CurrentConnection
	}
	cfg.Apps[name] = config.AppConfig{
		Connection:    conn,
		RepositoryID:  repo.ID,
		RepositoryKey: repo.PublicKey,
		KeyFile:       keyFile,
	}
	return saveConfig(c)
}

func loadOrCreateKeys(path string) (*asym.KeyPair, error) {
	keys, err := client.ReadKeyFile(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return keys, err
	}
	if keys, err = asym.Generate(); err != nil {
		return nil, err
	}
	if err := client.WriteKeyFile(path, keys); err != nil {
		return nil, err
	}
	return keys, nil
}
