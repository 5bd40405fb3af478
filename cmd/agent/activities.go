package main

import (
	"fmt"
	"text/tabwriter"

	"mlops-agent/pkg/registry"

	"github.com/spf13/cobra"
)

func newActivitiesCmd(_ *rootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "activities",
		Short: "List the workflow activities and check their input schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := registry.Default()
			if path != "" {
				var err error
				if reg, err = registry.LoadRegistry(path); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK TYPE\tSTATUS\tTIMEOUT\tDESCRIPTION")
			for _, a := range reg.Activities {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.TaskType, a.ImplementationStatus, a.Timeout, a.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if problems := reg.Check(); len(problems) > 0 {
				for _, p := range problems {
					fmt.Fprintln(cmd.ErrOrStderr(), "invalid:", p)
				}
				return fmt.Errorf("registry has %d problem(s)", len(problems))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "registry", "", "registry file to check instead of the built-in one")
	return cmd
}
