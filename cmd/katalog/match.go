package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/katalog/internal/cli"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/tui"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <description>",
		Short: "Match one work item to catalog codes",
		Long: `Match a single work-item description to ranked catalog codes.

The description is normalized, classified into the taxonomy, searched in the
local catalog and, depending on the mode, looked up on the web. A learned
mapping for the same text and project context answers immediately.`,
		Example: `  # Match with the configured defaults
  katalog match "Bednění pro základové pasy"

  # Restrict to a taxonomy section and ask for more candidates
  katalog match --section 27 --top 10 "Beton základových pasů C25/30"

  # Match and confirm the right candidate interactively
  katalog match --review --building-type "rodinný dům" "Zdivo z cihel tl. 300 mm"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMatch,
	}

	addMatchFlags(cmd)
	addContextFlags(cmd)
	cmd.Flags().String("section", "", "taxonomy section code to search in")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	cmd.Flags().Bool("review", false, "review the candidates interactively")

	return cmd
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	section, _ := cmd.Flags().GetString("section")
	asJSON, _ := cmd.Flags().GetBool("json")
	review, _ := cmd.Flags().GetBool("review")

	req, err := matchRequest(cmd, strings.Join(args, " "), section)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, appOptions{withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()
	a.warnMode(req.Mode)

	res := a.engine.MatchSingle(ctx, req)

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else if err := cli.RenderMatch(out, res); err != nil {
		return err
	}

	if !review || len(res.Candidates) == 0 {
		return nil
	}

	summary, err := tui.Run(ctx, []*model.MatchResult{res}, tui.LearningReviewer{
		Cache:   a.cache,
		Context: req.Context,
	})
	if err != nil {
		return err
	}
	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, s tui.Summary) {
	msg := fmt.Sprintf("Reviewed: %d accepted, %d rejected, %d skipped", s.Accepted, s.Rejected, s.Skipped)
	if s.Pending > 0 {
		msg += fmt.Sprintf(", %d left for later", s.Pending)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg))
}
