package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arthur-debert/taskman/taskman/tasks"
)

// CLI is the Viper-driven command line of taskman
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
	app       *App
}

// NewCLI creates the command tree
func NewCLI() *CLI {
	cli := &CLI{viperInst: viper.New()}

	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()

	return cli
}

// setupViperConfig configures Viper with environment variables and config files
func (cli *CLI) setupViperConfig() {
	if configFile := os.Getenv("TASKMAN_CONFIG"); configFile != "" {
		cli.viperInst.SetConfigFile(configFile)
	} else {
		cli.viperInst.SetConfigName("taskman")
		cli.viperInst.AddConfigPath(".")
		cli.viperInst.AddConfigPath("$HOME/.taskman")
		cli.viperInst.AddConfigPath("/etc/taskman")
	}

	// --data-dir -> TASKMAN_DATA_DIR
	cli.viperInst.SetEnvPrefix("TASKMAN")
	cli.viperInst.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cli.viperInst.AutomaticEnv()
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "taskman",
		Short: "taskman - tasks, projects and states on pluggable storages",
		Long: `taskman manages task documents stored on a selectable storage.

Configuration Sources (in order of precedence):
1. Command line flags
2. Environment variables (TASKMAN_*)
3. Configuration file (TASKMAN_CONFIG, ./taskman.yaml, ~/.taskman/taskman.yaml, /etc/taskman/taskman.yaml)

Examples:
  taskman search milk
  taskman search '(project: "Work" AND state: "Open")' --sort title:desc
  taskman project add Household
  taskman storage list
  taskman storage select default_storage`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.viperInst.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return &CLIError{
						Operation:  "read configuration",
						Cause:      "invalid configuration file",
						Details:    err.Error(),
						Underlying: err,
					}
				}
			}
			_, err := NewOutputFormatter(cli.viperInst.GetString("format"))
			return err
		},
	}

	cli.addGlobalFlags()
}

func (cli *CLI) addGlobalFlags() {
	flags := cli.rootCmd.PersistentFlags()

	flags.String("data-dir", defaultDataDir(), "Directory holding storage configurations and local storages")
	flags.String("log-level", "warn", "Log level (trace|debug|info|warn|error)")
	flags.Bool("log-pretty", false, "Human readable log output")
	flags.String("metadata-type", tasks.DefaultMetadataType, "Document type searched as tasks")
	flags.Duration("debounce", tasks.DefaultDebounce, "Delay before an interactive search runs")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("language", "", "YAML catalog translating state names")
	flags.StringP("format", "f", FormatTable, "Output format (table|json|yaml)")

	_ = cli.viperInst.BindPFlags(flags)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskman"
	}
	return filepath.Join(home, ".taskman")
}

func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.searchCommand(),
		cli.explainCommand(),
		cli.showCommand(),
		cli.saveCommand(),
		cli.removeCommand(),
		cli.catalogCommand("project"),
		cli.catalogCommand("state"),
		cli.storageCommand(),
		cli.migrateCommand(),
	)
}

// App builds the application on first use
func (cli *CLI) App(cmd *cobra.Command) (*App, error) {
	if cli.app != nil {
		return cli.app, nil
	}
	app, err := NewApp(AppConfig{
		DataDir:      cli.viperInst.GetString("data-dir"),
		LogLevel:     cli.viperInst.GetString("log-level"),
		LogPretty:    cli.viperInst.GetBool("log-pretty"),
		MetadataType: cli.viperInst.GetString("metadata-type"),
		Debounce:     cli.viperInst.GetDuration("debounce"),
		MetricsAddr:  cli.viperInst.GetString("metrics-addr"),
		Language:     cli.viperInst.GetString("language"),
		Stderr:       cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	cli.app = app
	return app, nil
}

func (cli *CLI) output() *OutputFormatter {
	// validated in PersistentPreRunE
	of, _ := NewOutputFormatter(cli.viperInst.GetString("format"))
	return of
}

// Execute runs the command line and releases the application
func (cli *CLI) Execute() error {
	err := cli.rootCmd.Execute()
	if cli.app != nil {
		if closeErr := cli.app.Close(); closeErr != nil && err == nil {
			err = WrapError("close storage", closeErr)
		}
		cli.app = nil
	}
	return err
}
