package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"slidecast/internal/config"
	"slidecast/internal/daemon"
	"slidecast/internal/store"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <document>",
		Short: "Register a slide deck document for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				pres, err := daemon.RegisterPresentation(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered presentation %d (%s), status %s\n",
					pres.ID, pres.Title, displayStatus(string(pres.Status)))
				return nil
			})
		},
	}
}
