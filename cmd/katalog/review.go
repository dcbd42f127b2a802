package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/katalog/internal/cli"
	"github.com/Veraticus/katalog/internal/tui"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <file|->",
		Short: "Match a list of work items and confirm the results",
		Long: `Match every description of a file, then step through the results and
accept or reject a candidate for each. Accepted candidates become validated
learned mappings for the given project context; rejections lower the
confidence of a previously learned mapping.`,
		Example: `  katalog review --building-type "rodinný dům" vykaz.txt`,
		Args:    cobra.ExactArgs(1),
		RunE:    runReview,
	}

	addMatchFlags(cmd)
	addContextFlags(cmd)
	cmd.Flags().Int("concurrency", 0, "items matched at the same time (default from config)")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := matchFile(ctx, cmd, a, args[0])
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	summary, err := tui.Run(ctx, results, tui.LearningReviewer{
		Cache:   a.cache,
		Context: projectContext(cmd),
	})
	if err != nil {
		return err
	}

	printSummary(cmd, summary)
	if summary.Accepted > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Accepted items will be answered from learned mappings next time."))
	}
	return nil
}
