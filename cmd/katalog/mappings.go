package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/katalog/internal/cli"
	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/learning"
	"github.com/Veraticus/katalog/internal/model"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect and maintain learned mappings",
		Long: `Learned mappings remember which catalog code a description resolved to in a
given project context. They are created by review, by auto-learning of very
confident matches, or by hand with "mappings save".`,
		Example: `  # What does the cache know about a description?
  katalog mappings lookup "Bednění pro základové pasy"

  # Teach a mapping by hand
  katalog mappings save --code 274351121 "Bednění pro základové pasy"

  # Confirm or reject it later
  katalog mappings approve --code 274351121 "Bednění pro základové pasy"
  katalog mappings reject --code 274351121 --reason "jiný systém" "Bednění pro základové pasy"

  # Remove mappings nobody used for half a year
  katalog mappings prune --retention 4380h`,
	}

	cmd.AddCommand(lookupMappingCmd())
	cmd.AddCommand(saveMappingCmd())
	cmd.AddCommand(approveMappingCmd())
	cmd.AddCommand(rejectMappingCmd())
	cmd.AddCommand(relatedMappingCmd())
	cmd.AddCommand(listMappingsCmd())
	cmd.AddCommand(historyMappingCmd())
	cmd.AddCommand(staleMappingsCmd())
	cmd.AddCommand(pruneMappingsCmd())

	return cmd
}

func openCache(cmd *cobra.Command) (*app, error) {
	return newApp(cmd.Context(), appOptions{withStore: true})
}

func lookupMappingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <description>",
		Short: "Show the learned mapping for a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.cache.Lookup(cmd.Context(), strings.Join(args, " "), projectContext(cmd))
			if err != nil {
				return fmt.Errorf("failed to look up mapping: %w", err)
			}
			if m == nil {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No learned mapping"))
				return nil
			}
			return printMappings(cmd, []model.LearnedMapping{*m})
		},
	}
	addContextFlags(cmd)
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}

func saveMappingCmd() *cobra.Command {
	var req learning.SaveRequest

	cmd := &cobra.Command{
		Use:   "save <description>",
		Short: "Remember a catalog code for a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Code == "" {
				return common.NewUserError("--code is required", common.ErrMissingConfig)
			}
			if req.Confidence < 0 || req.Confidence > 1 {
				return common.NewUserError("--confidence must be within [0, 1]", common.ErrInvalidConfig)
			}

			a, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req.Text = strings.Join(args, " ")
			req.Context = projectContext(cmd)
			if a.settings.Catalog.Path != "" {
				if item, ok := a.provider.Get(req.Code); ok {
					req.Name = firstNonEmpty(req.Name, item.Name)
					req.Unit = firstNonEmpty(req.Unit, item.Unit)
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning(fmt.Sprintf("Code %s is not in the catalog", req.Code)))
				}
			}

			m, err := a.cache.Save(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to save mapping: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %s → %s %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				m.NormalizedText,
				cli.CodeStyle.Render(m.Code),
				cli.FormatConfidence(m.Confidence))
			return nil
		},
	}

	addContextFlags(cmd)
	cmd.Flags().StringVar(&req.Code, "code", "", "catalog code")
	cmd.Flags().StringVar(&req.Name, "name", "", "item name (default from catalog)")
	cmd.Flags().StringVar(&req.Unit, "unit", "", "unit of measure (default from catalog)")
	cmd.Flags().Float64Var(&req.Confidence, "confidence", 0.9, "mapping confidence")
	cmd.Flags().BoolVar(&req.ValidatedByUser, "validated", true, "mark the mapping as confirmed by a user")

	return cmd
}

func approveMappingCmd() *cobra.Command {
	var code, comment string

	cmd := &cobra.Command{
		Use:   "approve <description>",
		Short: "Confirm a learned mapping",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.cache.Approve(cmd.Context(), strings.Join(args, " "), code, projectContext(cmd), comment)
			if err != nil {
				return feedbackError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Approved %s, confidence now %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.CodeStyle.Render(m.Code),
				cli.FormatConfidence(m.Confidence))
			return nil
		},
	}

	addContextFlags(cmd)
	cmd.Flags().StringVar(&code, "code", "", "expected catalog code (must match the mapping)")
	cmd.Flags().StringVar(&comment, "comment", "", "comment stored with the approval")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func rejectMappingCmd() *cobra.Command {
	var code, reason string

	cmd := &cobra.Command{
		Use:   "reject <description>",
		Short: "Reject a learned mapping",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.cache.Reject(cmd.Context(), strings.Join(args, " "), code, projectContext(cmd), reason)
			if err != nil {
				return feedbackError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Rejected %s, confidence now %s\n",
				cli.WarningStyle.Render(cli.WarningIcon),
				cli.CodeStyle.Render(m.Code),
				cli.FormatConfidence(m.Confidence))
			return nil
		},
	}

	addContextFlags(cmd)
	cmd.Flags().StringVar(&code, "code", "", "expected catalog code (must match the mapping)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason stored with the rejection")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func feedbackError(err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return common.NewUserError("No learned mapping for this description and context", err)
	case errors.Is(err, learning.ErrCodeMismatch):
		return common.NewUserError("The learned mapping points to a different code", err)
	default:
		return err
	}
}

func relatedMappingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "related <code>",
		Short: "List items confirmed together with a code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.cache.GetRelatedItems(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cli.RenderRelated(cmd.OutOrStdout(), args[0], items)
		},
	}
}

func listMappingsCmd() *cobra.Command {
	var limit int
	var code string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learned mappings, most recently used first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var mappings []model.LearnedMapping
			if code != "" {
				mappings, err = a.store.GetMappingsByCode(cmd.Context(), code)
			} else {
				mappings, err = a.store.ListMappings(cmd.Context(), limit)
			}
			if err != nil {
				return fmt.Errorf("failed to list mappings: %w", err)
			}
			return printMappings(cmd, mappings)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of mappings")
	cmd.Flags().StringVar(&code, "code", "", "only mappings resolving to this code")
	cmd.Flags().Bool("json", false, "print as JSON")

	return cmd
}

func historyMappingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <mapping-id>",
		Short: "Show approvals and rejections of a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			m, err := a.store.GetMappingByID(ctx, args[0])
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError(fmt.Sprintf("No mapping with id %s", args[0]), err)
				}
				return err
			}
			feedback, err := a.store.GetFeedback(ctx, m.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s → %s %s\n", cli.FormatTitle(m.NormalizedText), cli.CodeStyle.Render(m.Code), m.Name)
			if len(feedback) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No feedback recorded."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join([]string{
				cli.TableHeaderStyle.Render("WHEN"),
				cli.TableHeaderStyle.Render("ACTION"),
				cli.TableHeaderStyle.Render("CODE"),
				cli.TableHeaderStyle.Render("COMMENT"),
			}, "\t"))
			for _, f := range feedback {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					f.CreatedAt.Local().Format("2006-01-02 15:04"),
					f.Action,
					f.Code,
					f.Comment)
			}
			return w.Flush()
		},
	}
}

func staleMappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List mappings unused for longer than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			retention, _ := cmd.Flags().GetDuration("retention")

			a, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			mappings, err := a.cache.FindStale(cmd.Context(), retention)
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("No stale mappings"))
				return nil
			}
			return printMappings(cmd, mappings)
		},
	}
	cmd.Flags().Duration("retention", 0, "unused period after which a mapping is stale (default learning.retention)")
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}

func pruneMappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stale mappings and their related items",
		Long: `Delete mappings unused for longer than the retention window. An automatic
checkpoint of the database is taken first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			retention, _ := cmd.Flags().GetDuration("retention")
			skipCheckpoint, _ := cmd.Flags().GetBool("no-checkpoint")
			ctx := cmd.Context()

			a, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipCheckpoint {
				manager, err := a.store.NewCheckpointManager()
				if err != nil {
					return fmt.Errorf("failed to create checkpoint manager: %w", err)
				}
				if _, err := manager.AutoCheckpoint(ctx, "prune"); err != nil {
					return fmt.Errorf("failed to checkpoint before pruning: %w", err)
				}
			}

			n, err := a.cache.Prune(ctx, retention)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Pruned %d stale mappings", n)))
			return nil
		},
	}
	cmd.Flags().Duration("retention", 0, "unused period after which a mapping is stale (default learning.retention)")
	cmd.Flags().Bool("no-checkpoint", false, "skip the automatic checkpoint")
	return cmd
}

func printMappings(cmd *cobra.Command, mappings []model.LearnedMapping) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(mappings)
	}
	return cli.RenderMappings(cmd.OutOrStdout(), mappings)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
