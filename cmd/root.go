package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kglogistics/config"
	"kglogistics/utils"
)

// NewRootCommand creates the kglogistics command tree. Without a
// subcommand it runs the HTTP server.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kglogistics",
		Short:         "KG Logistics brokerage backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadConfig(); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			utils.ConfigureLogger(config.AppConfig.Environment, config.AppConfig.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewAccessCommand())
	cmd.AddCommand(NewTemplatesCommand())
	return cmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openDB connects to Postgres and brings the schema up to date.
func openDB() error {
	if err := config.ConnectDB(); err != nil {
		return err
	}
	return config.Migrate(config.DB)
}
