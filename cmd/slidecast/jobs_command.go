package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"slidecast/internal/config"
	"slidecast/internal/generation"
	"slidecast/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs <presentation-id>",
		Short: "List generation jobs for a presentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid presentation id %q", args[0])
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				jobs, err := st.JobsForPresentation(cmd.Context(), id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No generation jobs recorded.")
					return nil
				}

				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					slide := ""
					if job.SlideNumber > 0 {
						slide = strconv.Itoa(job.SlideNumber)
					}
					detail := job.ResultURL
					if job.State == generation.StateFailed {
						detail = job.ErrorMessage
					} else if job.Annotation != "" {
						detail = job.Annotation
					}
					rows = append(rows, []string{
						job.ID,
						string(job.Kind),
						slide,
						job.Provider,
						colorizeStatus(string(job.State), colorize),
						fmt.Sprintf("%.0f%%", job.Progress),
						job.UpdatedAt.Local().Format(time.DateTime),
						detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "Kind", "Slide", "Provider", "State", "Progress", "Updated", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				job, err := st.GetJob(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", jobID)
				}
				if job.IsTerminal() {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s already %s\n", jobID, job.State)
					return nil
				}

				// Without the daemon's tracker the external service cannot be
				// reached; record cancellation intent so the next poll stops.
				if err := job.MarkCancelled(time.Now().UTC()); err != nil {
					return err
				}
				if err := st.SaveJob(cmd.Context(), job); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", jobID)
				return nil
			})
		},
	}
}
