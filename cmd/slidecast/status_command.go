package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"slidecast/internal/config"
	"slidecast/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show presentations and pipeline progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				var statuses []store.Status
				if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
					parsed, ok := store.ParseStatus(trimmed)
					if !ok {
						return fmt.Errorf("unknown status %q", trimmed)
					}
					statuses = append(statuses, parsed)
				}

				items, err := st.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if len(items) == 0 {
					fmt.Fprintln(out, "No presentations registered.")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, pres := range items {
					progress := fmt.Sprintf("%.0f%%", pres.ProgressPercent)
					detail := strings.TrimSpace(pres.ProgressMessage)
					if pres.Status == store.StatusFailed {
						detail = strings.TrimSpace(pres.ErrorMessage)
					}
					rows = append(rows, []string{
						strconv.FormatInt(pres.ID, 10),
						pres.Title,
						colorizeStatus(string(pres.Status), colorize),
						strconv.Itoa(pres.SlideCount),
						progress,
						detail,
					})
				}
				fmt.Fprintln(out, renderSectionHeader("Presentations", colorize))
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Status", "Slides", "Progress", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))

				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				statRows := make([][]string, 0, len(stats))
				for _, status := range store.AllStatuses() {
					if count, ok := stats[status]; ok {
						statRows = append(statRows, []string{displayStatus(string(status)), strconv.Itoa(count)})
					}
				}
				fmt.Fprintln(out, renderSectionHeader("Totals", colorize))
				fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, statRows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter presentations by status")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <presentation-id>",
		Short: "Return a failed presentation to the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid presentation id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				pres, err := st.RetryFailed(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Presentation %d queued for retry, status %s\n",
					pres.ID, displayStatus(string(pres.Status)))
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return interrupted presentations to the start of their stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				count, err := st.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d presentation(s)\n", count)
				return nil
			})
		},
	}
}
