package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/taskman/taskman/backend"
	"github.com/arthur-debert/taskman/taskman/settings"
	"github.com/arthur-debert/taskman/taskman/tasks"
)

// storageRow is the listing form of a storage configuration
type storageRow struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	StorageType backend.Kind `json:"storage_type,omitempty" yaml:"storage_type,omitempty"`
	Storage     string       `json:"storage,omitempty" yaml:"storage,omitempty"`
	Selected    bool         `json:"selected" yaml:"selected"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`
}

func (cli *CLI) storageCommand() *cobra.Command {
	group := &cobra.Command{
		Use:   "storage",
		Short: "Manage storage configurations and the selected storage",
	}
	group.AddCommand(
		cli.storageListCommand(),
		cli.storageShowCommand(),
		cli.storageSaveCommand(),
		cli.storageDeleteCommand(),
		cli.storageSelectCommand(),
		cli.storageClearCommand(),
		cli.storageExportCommand(),
		cli.storageImportCommand(),
	)
	return group
}

// seededSettings returns the configuration store, creating the default
// configurations on first use
func (cli *CLI) seededSettings(cmd *cobra.Command, operation string) (*App, *settings.Store, error) {
	app, err := cli.App(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfgs := app.manager.Settings()
	if _, err := cfgs.Seed(cmd.Context()); err != nil {
		return nil, nil, WrapError(operation, err)
	}
	return app, cfgs, nil
}

func (cli *CLI) storageListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List storage configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfgs, err := cli.seededSettings(cmd, "list storages")
			if err != nil {
				return err
			}
			entries, err := cfgs.List(cmd.Context())
			if err != nil {
				return WrapError("list storages", err)
			}
			selected, err := cfgs.Selected()
			if err != nil {
				return WrapError("list storages", err)
			}

			rows := make([]storageRow, 0, len(entries))
			for _, e := range entries {
				row := storageRow{
					ID:       e.ID,
					Name:     e.Doc.String("name"),
					Selected: e.ID == selected,
				}
				if e.Err != nil {
					row.Error = e.Err.Error()
				} else {
					row.StorageType = e.Config.StorageType
					if d, err := e.Config.Descriptor(); err == nil {
						row.Storage = backend.Describe(d)
					} else {
						row.Error = err.Error()
					}
				}
				rows = append(rows, row)
			}

			return cli.output().Write(cmd.OutOrStdout(), rows, func() Table {
				t := Table{Header: []string{"", "ID", "NAME", "TYPE", "STORAGE"}}
				for _, r := range rows {
					mark := ""
					if r.Selected {
						mark = "*"
					}
					storage := r.Storage
					if r.Error != "" {
						storage = "error: " + r.Error
					}
					t.Rows = append(t.Rows, []string{mark, r.ID, r.Name, string(r.StorageType), storage})
				}
				return t
			})
		},
	}
}

func (cli *CLI) storageShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a storage configuration (the selected one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfgs, err := cli.seededSettings(cmd, "show storage")
			if err != nil {
				return err
			}
			var id string
			if len(args) == 1 {
				id = args[0]
			} else if id, err = cfgs.Selected(); err != nil {
				return WrapError("show storage", err)
			}
			cfg, err := cfgs.Get(cmd.Context(), id)
			if err != nil {
				return WrapError("show storage", err)
			}
			return cli.output().Write(cmd.OutOrStdout(), cfg, func() Table {
				t := Table{Header: []string{"FIELD", "VALUE"}}
				t.Rows = append(t.Rows,
					[]string{"id", id},
					[]string{"name", cfg.ApplicationName},
					[]string{"storage_type", string(cfg.StorageType)},
				)
				if d, err := cfg.Descriptor(); err == nil {
					t.Rows = append(t.Rows, []string{"storage", backend.Describe(d)})
				} else {
					t.Rows = append(t.Rows, []string{"error", err.Error()})
				}
				return t
			})
		},
	}
}

func (cli *CLI) storageSaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [id]",
		Short: "Create or replace a storage configuration",
		Long: `Create a storage configuration, or replace configuration <id>.

The connection parameters come from flags, or from a JSON blob with
--from-file:

  taskman storage save --type sqlite --name Archive --path archive.db
  taskman storage save --type s3 --name Cloud --bucket tasks --region eu-west-1
  taskman storage save default_storage --from-file local.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromFlags(cmd)
			if err != nil {
				return err
			}
			app, cfgs, err := cli.seededSettings(cmd, "save storage")
			if err != nil {
				return err
			}

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			saved, err := cfgs.Save(cmd.Context(), id, cfg)
			if err != nil {
				return WrapError("save storage", err)
			}
			// the live connection was built from the old parameters
			if selected, err := cfgs.Selected(); err == nil && selected == saved {
				app.manager.Invalidate()
			}
			fmt.Fprintln(cmd.OutOrStdout(), saved)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("from-file", "", "Read the configuration JSON from a file (- for stdin)")
	flags.String("type", "", "Storage type ("+kindList()+")")
	flags.String("name", "", "Configuration name")
	flags.String("username", "", "User name")
	flags.String("password", "", "Password")
	flags.String("url", "", "Server URL (dav, drupal, erp5)")
	flags.String("auth-type", "", "Authentication type (dav)")
	flags.String("realm", "", "Authentication realm (dav)")
	flags.String("access-token", "", "Access token (dropbox)")
	flags.String("json-description", "", "Raw storage description, replaces the other parameters")
	flags.String("path", "", "File path (local, sqlite)")
	flags.String("dsn", "", "Connection string (postgres)")
	flags.String("bucket", "", "Bucket (s3)")
	flags.String("prefix", "", "Key prefix (s3)")
	flags.String("region", "", "Region (s3)")
	flags.String("endpoint", "", "Endpoint URL (s3 compatible services)")
	flags.String("access-key-id", "", "Access key id (s3)")
	flags.String("secret-access-key", "", "Secret access key (s3)")
	flags.Bool("use-path-style", false, "Path style bucket addressing (s3)")
	return cmd
}

func kindList() string {
	names := make([]string, len(backend.Kinds))
	for i, k := range backend.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, "|")
}

func configFromFlags(cmd *cobra.Command) (settings.Config, error) {
	flags := cmd.Flags()
	if path, _ := flags.GetString("from-file"); path != "" {
		var (
			data []byte
			err  error
		)
		if path == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return settings.Config{}, WrapError("read storage configuration", err)
		}
		cfg, err := backend.ParseConfig(data)
		if err != nil {
			return settings.Config{}, WrapError("read storage configuration", err)
		}
		return cfg, nil
	}

	typeName, _ := flags.GetString("type")
	kind, err := backend.ParseKind(typeName)
	if err != nil {
		return settings.Config{}, WrapError("save storage", err)
	}
	str := func(name string) string {
		v, _ := flags.GetString(name)
		return v
	}
	pathStyle, _ := flags.GetBool("use-path-style")
	return settings.Config{
		StorageType:     kind,
		ApplicationName: str("name"),
		Username:        str("username"),
		Password:        str("password"),
		URL:             str("url"),
		AuthType:        str("auth-type"),
		Realm:           str("realm"),
		AccessToken:     str("access-token"),
		JSONDescription: str("json-description"),
		Path:            str("path"),
		DSN:             str("dsn"),
		Bucket:          str("bucket"),
		Prefix:          str("prefix"),
		Region:          str("region"),
		Endpoint:        str("endpoint"),
		AccessKeyID:     str("access-key-id"),
		SecretAccessKey: str("secret-access-key"),
		UsePathStyle:    pathStyle,
	}, nil
}

func (cli *CLI) storageDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a storage configuration; deleting the selected one selects the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			if err := app.manager.Delete(cmd.Context(), args[0]); err != nil {
				return WrapError("delete storage", err)
			}
			return nil
		},
	}
}

func (cli *CLI) storageSelectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select <id>",
		Short: "Select the storage used by the other commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cfgs, err := cli.seededSettings(cmd, "select storage")
			if err != nil {
				return err
			}
			if _, err := cfgs.Get(cmd.Context(), args[0]); err != nil {
				return WrapError("select storage", err)
			}
			if err := app.manager.Select(args[0]); err != nil {
				return WrapError("select storage", err)
			}
			return nil
		},
	}
}

func (cli *CLI) storageClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every document of the selected storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return &CLIError{
					Operation:   "clear storage",
					Cause:       "confirmation required",
					Suggestions: []string{"Run 'taskman storage export' first to keep a copy", "Pass --yes to confirm"},
				}
			}
			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			n, err := app.tasks.ClearStorage(cmd.Context())
			if err != nil {
				return WrapError("clear storage", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d documents removed\n", n)
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm removing every document")
	return cmd
}

func (cli *CLI) storageExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write every document and attachment of the selected storage as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			archive, err := app.tasks.Export(cmd.Context())
			if err != nil {
				return WrapError("export storage", err)
			}
			if len(args) == 0 {
				return tasks.WriteArchive(cmd.OutOrStdout(), archive)
			}

			f, err := os.Create(args[0])
			if err != nil {
				return WrapError("export storage", err)
			}
			w := bufio.NewWriter(f)
			if err := tasks.WriteArchive(w, archive); err != nil {
				f.Close()
				return WrapError("export storage", err)
			}
			if err := w.Flush(); err != nil {
				f.Close()
				return WrapError("export storage", err)
			}
			if err := f.Close(); err != nil {
				return WrapError("export storage", err)
			}
			return nil
		},
	}
}

func (cli *CLI) storageImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Write an exported archive into the selected storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return WrapError("import storage", err)
				}
				defer f.Close()
				r = f
			}
			archive, err := tasks.ReadArchive(r)
			if err != nil {
				return WrapError("import storage", err)
			}

			app, err := cli.App(cmd)
			if err != nil {
				return err
			}
			n, err := app.tasks.Import(cmd.Context(), archive)
			if err != nil {
				return WrapError("import storage", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d objects imported\n", n)
			return nil
		},
	}
}
