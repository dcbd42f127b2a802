package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/katalog/internal/cli"
	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/engine"
	"github.com/Veraticus/katalog/internal/model"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file|->",
		Short: "Match a list of work items",
		Long: `Match one work-item description per line of a file, or of stdin when the
file is "-". Blank lines and lines starting with # are skipped. A line may
carry a section hint after a tab.

Items are matched a few at a time. Interrupting the run keeps the items
already matched; the rest are printed without candidates.`,
		Example: `  # Match a bill of quantities exported as plain text
  katalog batch vykaz.txt

  # Stream JSON lines for further processing
  cat vykaz.txt | katalog batch --json - > matches.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}

	addMatchFlags(cmd)
	addContextFlags(cmd)
	cmd.Flags().Int("concurrency", 0, "items matched at the same time (default from config)")
	cmd.Flags().Bool("json", false, "print one JSON result per line")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context(), true)

	a, err := newApp(ctx, appOptions{withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := matchFile(ctx, cmd, a, args[0])
	if err != nil {
		return err
	}

	if err := writeResults(cmd.OutOrStdout(), results, asJSON); err != nil {
		return err
	}

	if handler.WasInterrupted() {
		return common.NewUserError("Batch interrupted", context.Canceled)
	}
	return nil
}

// matchFile reads descriptions from path and matches them with the command's
// flags.
func matchFile(ctx context.Context, cmd *cobra.Command, a *app, path string) ([]*model.MatchResult, error) {
	descriptions, err := readDescriptionFile(cmd, path)
	if err != nil {
		return nil, err
	}
	if len(descriptions) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning("No descriptions to match"))
		return nil, nil
	}

	reqs := make([]model.MatchRequest, 0, len(descriptions))
	for _, d := range descriptions {
		req, err := matchRequest(cmd, d.Text, d.SectionHint)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	a.warnMode(reqs[0].Mode)

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	opts := engine.BatchOptions{Concurrency: concurrency}

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	if !noProgress {
		progress := cli.NewProgress(cmd.ErrOrStderr(), len(reqs), "Matching work items...")
		opts.Progress = progress.Update
		defer progress.Finish()
	}

	return a.engine.MatchBatch(ctx, reqs, opts), nil
}

func readDescriptionFile(cmd *cobra.Command, path string) ([]cli.Description, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("Cannot open %s", path), err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	return cli.ReadDescriptions(r)
}

func writeResults(w io.Writer, results []*model.MatchResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, res := range results {
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
		}
		return nil
	}

	matched := 0
	for _, res := range results {
		if err := cli.RenderMatch(w, res); err != nil {
			return err
		}
		if len(res.Candidates) > 0 {
			matched++
		}
	}
	_, err := fmt.Fprintln(w, cli.FormatInfo(fmt.Sprintf("%d of %d items have candidates", matched, len(results))))
	return err
}
