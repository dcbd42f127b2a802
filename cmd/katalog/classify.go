package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/katalog/internal/cli"
	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/model"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [description]",
		Short: "Route work items to taxonomy sections",
		Long: `Classify descriptions into the work-type taxonomy without searching the
catalog. Pass a description as arguments, or a file of descriptions with --file.`,
		Example: `  katalog classify "Omítka vápenocementová vnitřní"
  katalog classify --file vykaz.txt --json`,
		RunE: runClassify,
	}

	cmd.Flags().StringP("file", "f", "", "file with one description per line (- for stdin)")
	cmd.Flags().Bool("json", false, "print results as JSON")

	return cmd
}

type classifyOutput struct {
	Classification *model.ClassificationResult `json:"classification"`
	Text           string                      `json:"text"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	asJSON, _ := cmd.Flags().GetBool("json")

	var texts []string
	switch {
	case file != "":
		descriptions, err := readDescriptionFile(cmd, file)
		if err != nil {
			return err
		}
		for _, d := range descriptions {
			texts = append(texts, d.Text)
		}
	case len(args) > 0:
		texts = []string{strings.Join(args, " ")}
	default:
		return common.NewUserError("Pass a description or --file", common.ErrMissingConfig)
	}

	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.settings.Taxonomy.Path == "" {
		return common.NewUserError("No taxonomy configured; set taxonomy.path or pass --taxonomy", common.ErrMissingConfig)
	}

	results := a.engine.ClassifyBatch(texts)
	out := cmd.OutOrStdout()

	if asJSON {
		enc := json.NewEncoder(out)
		for i, res := range results {
			if err := enc.Encode(classifyOutput{Text: texts[i], Classification: res}); err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
		}
		return nil
	}

	for i, res := range results {
		if err := cli.RenderClassification(out, texts[i], res); err != nil {
			return err
		}
	}
	return nil
}
