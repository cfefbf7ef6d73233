package command

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/thingvault/internal/client"
)

// ThingInfo describes a stored thing.
type ThingInfo struct {
	Storage    string    `json:"storage"`
	ID         string    `json:"id"`
	Exists     bool      `json:"exists"`
	ModifiedOn time.Time `json:"modified_on,omitempty"`
	Size       int       `json:"size,omitempty" table:"wide"`
}

// StorageInfo is the open command output.
type StorageInfo struct {
	ID    string `json:"storage"`
	Token string `json:"storage_token"`
}

func storageFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(appFlags(), &cli.StringFlag{
		Name:     "storage",
		Aliases:  []string{"S"},
		Usage:    "storage id",
		EnvVars:  []string{"THINGVAULT_STORAGE"},
		Required: true,
	})
	return append(flags, extra...)
}

// openStorage registers the app and opens --storage.
func openStorage(c *cli.Context) (*client.Storage, error) {
	profile, err := appProfile(c)
	if err != nil {
		return nil, err
	}
	app, err := registerApp(c, profile)
	if err != nil {
		return nil, err
	}
	ctx, cancel := commandContext(c)
	defer cancel()
	return app.Open(ctx, c.String("storage"))
}

func thingID(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(c.Command.Name+" requires a thing ID", 1)
	}
	return c.Args().First(), nil
}

// OpenCommand opens a storage and prints its token.
func OpenCommand() *cli.Command {
	return &cli.Command{
		Name:  "open",
		Usage: "Open a storage, creating it on first use",
		Flags: storageFlags(),
		Action: func(c *cli.Context) error {
			st, err := openStorage(c)
			if err != nil {
				return err
			}
			return printResult(c, StorageInfo{ID: st.ID(), Token: st.Token()})
		},
	}
}

// StoreCommand stores a thing.
func StoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "store",
		Usage:     "Store a thing (data from --data, --file or stdin)",
		ArgsUsage: "ID",
		Flags: storageFlags(
			&cli.StringFlag{Name: "data", Usage: "thing contents"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read thing contents from file ('-' for stdin)"},
			&cli.TimestampFlag{Name: "modified-on", Usage: "modification time (RFC 3339), default now", Layout: time.RFC3339Nano},
		),
		Action: runStore,
	}
}

func runStore(c *cli.Context) error {
	id, err := thingID(c)
	if err != nil {
		return err
	}
	data, err := readThing(c)
	if err != nil {
		return err
	}
	modifiedOn := time.Now()
	if ts := c.Timestamp("modified-on"); c.IsSet("modified-on") && ts != nil {
		modifiedOn = *ts
	}

	st, err := openStorage(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()
	if err := st.Store(ctx, id, modifiedOn, data); err != nil {
		return err
	}
	return printResult(c, ThingInfo{Storage: st.ID(), ID: id, Exists: true, ModifiedOn: modifiedOn, Size: len(data)})
}

func readThing(c *cli.Context) ([]byte, error) {
	switch {
	case c.IsSet("data") && c.IsSet("file"):
		return nil, cli.Exit("use only one of --data and --file", 1)
	case c.IsSet("data"):
		return []byte(c.String("data")), nil
	case c.String("file") != "" && c.String("file") != "-":
		return os.ReadFile(c.String("file"))
	default:
		return io.ReadAll(c.App.Reader)
	}
}

// GetCommand retrieves a thing.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Retrieve a thing; contents go to stdout unless --out is given",
		ArgsUsage: "ID",
		Flags: storageFlags(
			&cli.StringFlag{Name: "out", Usage: "write contents to file and print metadata"},
		),
		Action: func(c *cli.Context) error {
			id, err := thingID(c)
			if err != nil {
				return err
			}
			st, err := openStorage(c)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()
			modifiedOn, data, err := st.Get(ctx, id)
			if err != nil {
				return err
			}
			if out := c.String("out"); out != "" {
				if err := os.WriteFile(out, data, 0o600); err != nil {
					return err
				}
				return printResult(c, ThingInfo{Storage: st.ID(), ID: id, Exists: true, ModifiedOn: modifiedOn, Size: len(data)})
			}
			_, err = writer(c).Write(data)
			return err
		},
	}
}

// ExistsCommand reports whether a thing exists.
func ExistsCommand() *cli.Command {
	return &cli.Command{
		Name:      "exists",
		Usage:     "Report whether a thing exists",
		ArgsUsage: "ID",
		Flags:     storageFlags(),
		Action: func(c *cli.Context) error {
			id, err := thingID(c)
			if err != nil {
				return err
			}
			st, err := openStorage(c)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()
			ok, err := st.Exists(ctx, id)
			if err != nil {
				return err
			}
			return printResult(c, ThingInfo{Storage: st.ID(), ID: id, Exists: ok})
		},
	}
}

// ModifiedCommand prints a thing's modification time.
func ModifiedCommand() *cli.Command {
	return &cli.Command{
		Name:      "modified",
		Usage:     "Print a thing's modification time",
		ArgsUsage: "ID",
		Flags:     storageFlags(),
		Action: func(c *cli.Context) error {
			id, err := thingID(c)
			if err != nil {
				return err
			}
			st, err := openStorage(c)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()
			modifiedOn, err := st.ModifiedOn(ctx, id)
			if err != nil {
				return err
			}
			return printResult(c, ThingInfo{Storage: st.ID(), ID: id, Exists: true, ModifiedOn: modifiedOn})
		},
	}
}

// DiscardCommand deletes a thing.
func DiscardCommand() *cli.Command {
	return &cli.Command{
		Name:      "discard",
		Usage:     "Delete a thing",
		ArgsUsage: "ID",
		Flags:     storageFlags(),
		Action: func(c *cli.Context) error {
			id, err := thingID(c)
			if err != nil {
				return err
			}
			st, err := openStorage(c)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()
			if err := st.Discard(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(writer(c), "Thing %q discarded\n", id)
			return nil
		},
	}
}

// FindCommand lists thing IDs matching a regular expression.
func FindCommand() *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "List thing IDs matching a regular expression (all when omitted)",
		ArgsUsage: "[PATTERN]",
		Flags:     storageFlags(),
		Action: func(c *cli.Context) error {
			st, err := openStorage(c)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()
			ids, err := st.FindIDs(ctx, c.Args().First())
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []string{}
			}
			return printResult(c, ids)
		},
	}
}
