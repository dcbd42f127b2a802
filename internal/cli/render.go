package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/katalog/internal/model"
)

func sourceIcon(source model.CandidateSource) string {
	switch source {
	case model.SourceLearnedMapping:
		return CacheIcon
	case model.SourceExternalSearch:
		return WebIcon
	default:
		return CatalogIcon
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// RenderMatch writes a match result with its section and ranked candidates.
func RenderMatch(w io.Writer, res *model.MatchResult) error {
	var b strings.Builder

	b.WriteString(FormatTitle(res.Query) + "\n")
	if res.NormalizedQuery != "" && res.NormalizedQuery != strings.ToLower(res.Query) {
		b.WriteString(SubtleStyle.Render("normalized: "+res.NormalizedQuery) + "\n")
	}
	if res.Classification != nil {
		b.WriteString(fmt.Sprintf("Section: %s %s\n", res.Classification.PathString(), FormatConfidence(res.Classification.Confidence)))
	}
	if res.FromCache {
		b.WriteString(FormatInfo("answered from learned mappings") + "\n")
	}

	if len(res.Candidates) == 0 {
		b.WriteString(FormatWarning("No candidates found") + "\n")
		if res.NeedsExternalSearch {
			b.WriteString(SubtleStyle.Render("The local catalog had nothing for this text; try --mode external.") + "\n")
		}
		_, err := io.WriteString(w, b.String())
		return err
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, TableHeaderStyle.Render("#")+"\t"+
		TableHeaderStyle.Render("CODE")+"\t"+
		TableHeaderStyle.Render("CONF")+"\t"+
		TableHeaderStyle.Render("UNIT")+"\t"+
		TableHeaderStyle.Render("NAME"))
	for i, c := range res.Candidates {
		fmt.Fprintf(tw, "%d\t%s %s\t%s\t%s\t%s\n",
			i+1,
			sourceIcon(c.Source),
			CodeStyle.Render(c.Code),
			FormatConfidence(c.Confidence),
			c.Unit,
			truncate(c.Name, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if best := res.Best(); best != nil && best.Reason != "" {
		b.WriteString(SubtleStyle.Render("best: "+best.Reason) + "\n")
	}
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d candidates in %s", len(res.Candidates), res.Elapsed.Round(time.Microsecond))) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderClassification writes a taxonomy routing result.
func RenderClassification(w io.Writer, text string, res *model.ClassificationResult) error {
	var b strings.Builder
	b.WriteString(FormatTitle(text) + "\n")

	if res == nil {
		b.WriteString(FormatWarning("Text does not resemble any section") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(fmt.Sprintf("Section:  %s %s\n", BoldStyle.Render(res.PathString()), FormatConfidence(res.Confidence)))
	if res.BestItem != nil {
		b.WriteString(fmt.Sprintf("Best item: %s %s %s\n",
			CodeStyle.Render(res.BestItem.Node.Code),
			res.BestItem.Node.Name,
			FormatConfidence(res.BestItem.Score)))
	}
	for _, alt := range res.AlternativeCategories {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("  or %s %s (%.0f%%)", alt.Node.Code, alt.Node.Name, alt.Score*100)) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderMappings writes learned mappings as a table.
func RenderMappings(w io.Writer, mappings []model.LearnedMapping) error {
	if len(mappings) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No learned mappings"))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tCONF\tUSES\tVALIDATED\tLAST USED\tCONTEXT\tTEXT")
	for _, m := range mappings {
		validated := ""
		if m.ValidatedByUser {
			validated = SuccessIcon
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			CodeStyle.Render(m.Code),
			FormatConfidence(m.Confidence),
			m.UsageCount,
			validated,
			m.LastUsedAt.Local().Format("2006-01-02"),
			m.ContextHash,
			truncate(m.NormalizedText, 50))
	}
	return tw.Flush()
}

// RenderRelated writes related items ordered as given.
func RenderRelated(w io.Writer, code string, items []model.RelatedItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No related items recorded for "+code))
		return err
	}

	fmt.Fprintln(w, FormatTitle("Related to "+code))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tSEEN\tUNIT\tNAME\tREASON")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			CodeStyle.Render(item.Code),
			item.CoOccurrenceCount,
			item.Unit,
			truncate(item.Name, 50),
			item.ReasonText)
	}
	return tw.Flush()
}

// RenderCompanions writes companion proposals with their originating rule.
func RenderCompanions(w io.Writer, items []model.CompanionItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No companion items proposed"))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tUNIT\tNAME\tFOR\tRULE\tREASON")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			CodeStyle.Render(item.Code),
			item.Unit,
			truncate(item.Name, 50),
			item.SourceCode,
			item.RuleID,
			item.Reason)
	}
	return tw.Flush()
}
