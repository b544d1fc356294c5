package cmd

import (
	"github.com/spf13/cobra"

	"kglogistics/utils"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openDB(); err != nil {
				return err
			}
			utils.Logger("cmd").Info("Schema is up to date")
			return nil
		},
	}
}
