package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/preflight"
	"slidecast/internal/store"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var skipIntro bool

	cmd := &cobra.Command{
		Use:   "preflight <presentation-id>",
		Short: "Audit presentation readiness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid presentation id %q", args[0])
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				checker := preflight.NewChecker(st, cfg.Preflight, logging.NewNop())
				checkIntro := cfg.Preflight.CheckIntroVideo && !skipIntro
				report, err := checker.Run(cmd.Context(), id, checkIntro)
				if err != nil && report == nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, renderSectionHeader(fmt.Sprintf("Preflight %d", id), colorize))
				fmt.Fprintf(out, "Overall: %s\n", colorizeStatus(string(report.Overall), colorize))
				if report.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", report.Error)
					return nil
				}

				rows := make([][]string, 0, len(report.Slides))
				for _, slide := range report.Slides {
					rows = append(rows, []string{
						strconv.Itoa(slide.SlideNumber),
						colorizeStatus(string(slide.Narrative), colorize),
						colorizeStatus(string(slide.EnhancedNarrative), colorize),
						colorizeStatus(string(slide.Audio), colorize),
						colorizeStatus(string(slide.AvatarVideo), colorize),
						strings.Join(slide.Issues, "; "),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Slide", "Narrative", "Enhanced", "Audio", "Avatar", "Issues"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))

				if report.Presentation != nil {
					fmt.Fprintf(out, "Intro video: %s", colorizeStatus(string(report.Presentation.IntroVideo), colorize))
					if len(report.Presentation.Issues) > 0 {
						fmt.Fprintf(out, " (%s)", strings.Join(report.Presentation.Issues, "; "))
					}
					fmt.Fprintln(out)
				}

				summary := report.Summary
				fmt.Fprintf(out, "Slides ready: %d/%d  warnings: %d  in progress: %d\n",
					summary.SlidesReady, summary.TotalSlides, summary.Warnings, summary.InProgress)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipIntro, "skip-intro", false, "Exclude the intro video check from this run")
	return cmd
}
