package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"slidecast/internal/config"
	"slidecast/internal/narration"
	"slidecast/internal/store"
)

func newNarrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "narrate <presentation-id> <narration-file>",
		Short: "Import slide narration for a presentation",
		Long: `Import slide narration from a TOML document. Each [[slides]] entry names a
slide number, its narration text, and optionally enhanced text and a
synthesized audio URL. The latest import per slide wins; a rendered
presentation waiting on narration resumes on the daemon's next poll.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid presentation id %q", args[0])
			}
			doc, err := narration.Load(args[1])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				count, err := narration.Import(cmd.Context(), st, id, doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported narration for %d slide(s)\n", count)
				return nil
			})
		},
	}
}
