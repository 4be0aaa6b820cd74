package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spamcheck-backend/internal/config"
)

func newProfilesCmd() *cobra.Command {
	var profileFile string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the form presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := loadProfiles(profileFile)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tENDPOINT\tMIN LENGTH")
			for _, name := range config.ProfileNames(profiles) {
				p := profiles[name]
				fmt.Fprintf(tw, "%s\t%s\t%d\n", name, p.Endpoint, p.MinLength)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&profileFile, "profile-file", "", "YAML file with extra presets")

	return cmd
}
