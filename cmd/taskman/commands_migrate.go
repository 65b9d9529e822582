package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/taskman/internal/validation"
	"github.com/arthur-debert/taskman/taskman/migration"
)

// migrateCommand builds the "migrate" group: field level rewrites over the
// documents of the selected storage
func (cli *CLI) migrateCommand() *cobra.Command {
	group := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite document fields in the selected storage",
		Long: `Migration commands operate on the documents of the selected storage.
By default only documents of the metadata type are touched; use --all-types
to include every document. Use --dry-run to preview changes.`,
	}

	flags := group.PersistentFlags()
	flags.BoolP("dry-run", "n", false, "Preview changes without writing them")
	flags.String("type", "", "Document type to migrate (defaults to --metadata-type)")
	flags.Bool("all-types", false, "Migrate documents of every type")

	group.AddCommand(
		&cobra.Command{
			Use:   "rename <old-field> <new-field>",
			Short: "Rename a field",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.runMigration(cmd, &migration.RenameField{OldName: args[0], NewName: args[1]})
			},
		},
		&cobra.Command{
			Use:   "remove <field>",
			Short: "Remove a field",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.runMigration(cmd, &migration.RemoveField{FieldName: args[0]})
			},
		},
		&cobra.Command{
			Use:   "add <field> <value>",
			Short: "Add a field to documents lacking it",
			Long: `Add a field with a default value. The value is read as JSON when it
parses (42, true, ["a","b"]) and as a plain string otherwise.`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.runMigration(cmd, &migration.AddField{FieldName: args[0], DefaultValue: parseValue(args[1])})
			},
		},
		&cobra.Command{
			Use:   "transform <field> <transformer>",
			Short: "Rewrite the values of a field",
			Long:  "Available transformers: " + strings.Join(migration.TransformerNames(), ", "),
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.runMigration(cmd, &migration.TransformField{FieldName: args[0], TransformerName: args[1]})
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check documents against the save rules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.runMigration(cmd, &migration.ValidateDocuments{DateFields: validation.DateFields})
			},
		},
	)
	return group
}

func (cli *CLI) migrationOptions(cmd *cobra.Command) migration.Options {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	allTypes, _ := cmd.Flags().GetBool("all-types")
	docType, _ := cmd.Flags().GetString("type")
	if docType == "" {
		docType = cli.viperInst.GetString("metadata-type")
	}
	if allTypes {
		docType = ""
	}
	return migration.Options{DryRun: dryRun, DocumentType: docType}
}

func (cli *CLI) runMigration(cmd *cobra.Command, command migration.Command) error {
	app, err := cli.App(cmd)
	if err != nil {
		return err
	}
	h, err := app.manager.Connect(cmd.Context())
	if err != nil {
		return WrapError("connect to storage", err)
	}

	opts := cli.migrationOptions(cmd)
	app.logger.Info().
		Str("migration", command.Description()).
		Str("type", opts.DocumentType).
		Bool("dry_run", opts.DryRun).
		Msg("running migration")

	result, err := migration.Apply(cmd.Context(), h, command, opts)
	if result == nil {
		return WrapError(strings.ToLower(command.Description()), err)
	}
	verbose := app.logger.Debug().Enabled()
	printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), result, opts.DryRun, verbose)
	if err != nil {
		return WrapError(strings.ToLower(command.Description()), err)
	}
	if !result.Success {
		return &CLIError{
			Operation: strings.ToLower(command.Description()),
			Cause:     "migration failed",
			Suggestions: []string{
				"Run the command with --dry-run to preview the changes",
				"Run 'taskman migrate validate' to list invalid documents",
			},
		}
	}
	return nil
}

func printMessage(out, errOut io.Writer, msg migration.Message, verbose bool) {
	switch msg.Level {
	case migration.LevelError:
		fmt.Fprintf(errOut, "ERROR: %s\n", msg.Text)
	case migration.LevelWarning:
		fmt.Fprintf(errOut, "WARN: %s\n", msg.Text)
	case migration.LevelInfo:
		fmt.Fprintln(out, msg.Text)
	case migration.LevelDebug:
		if verbose {
			fmt.Fprintf(out, "DEBUG: %s\n", msg.Text)
		}
	}

	if verbose && msg.Details != nil {
		keys := make([]string, 0, len(msg.Details))
		for k := range msg.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %v\n", k, msg.Details[k])
		}
	}
}

// printResult writes the messages of a migration and its summary
func printResult(out, errOut io.Writer, result *migration.Result, dryRun, verbose bool) {
	for _, msg := range result.Messages {
		printMessage(out, errOut, msg, verbose)
	}

	fmt.Fprintln(out)
	if !result.Success {
		fmt.Fprintln(out, "Migration failed")
		return
	}
	fmt.Fprintln(out, "Migration completed successfully")
	if result.Stats.TotalDocs > 0 {
		fmt.Fprintf(out, "  Modified: %d/%d documents\n", result.Stats.ModifiedDocs, result.Stats.TotalDocs)
		if verbose {
			fmt.Fprintf(out, "  Duration: %v\n", result.Stats.Duration)
		}
	}
	if dryRun {
		fmt.Fprintln(out, "  (DRY RUN - no changes applied)")
	}
}

// parseValue reads a command line value as JSON, falling back to the raw
// string
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
