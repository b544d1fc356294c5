package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kglogistics/config"
	"kglogistics/services"
	"kglogistics/utils"
)

// NewAccessCommand manages which identity-provider users may use the admin
// API.
func NewAccessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Grant, revoke, and list admin access",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if root := cmd.Root(); root.PersistentPreRunE != nil {
				if err := root.PersistentPreRunE(cmd, args); err != nil {
					return err
				}
			}
			return openDB()
		},
	}

	var name string
	grant := &cobra.Command{
		Use:   "grant <userId>",
		Short: "Give a user access to the admin API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var namePtr *string
			if name != "" {
				namePtr = &name
			}
			profile, err := services.NewAccessService(config.DB).GrantAccess(cmd.Context(), args[0], namePtr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted access to %s\n", profile.ID)
			return nil
		},
	}
	grant.Flags().StringVar(&name, "name", "", "display name stored on the profile")

	revoke := &cobra.Command{
		Use:   "revoke <userId>",
		Short: "Remove a user's access to the admin API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := services.NewAccessService(config.DB).RevokeAccess(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked access from %s\n", profile.ID)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List known profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := services.NewAccessService(config.DB).ListProfiles(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER ID\tNAME\tACCESS")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%t\n", p.ID, utils.Deref(p.Name), p.HasAccess)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(grant, revoke, list)
	return cmd
}
