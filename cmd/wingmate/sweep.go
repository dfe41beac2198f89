package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Close stale threads as ghosted and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			closed, err := svc.AutoghostSweep(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "closed %d stale thread(s)\n", closed)
			return nil
		},
	}
}
