package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/katalog/internal/cli"
	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/model"
)

func companionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "companions <code>...",
		Short: "Propose items required by confirmed catalog codes",
		Long: `Run the companion rules over confirmed catalog codes and list the items
they technologically require, such as formwork removal for formwork or
reinforcement for reinforced concrete. Only codes present in the catalog are
proposed.

With --mapping, the proposals are recorded as related items of a learned
mapping so they show up in "mappings related" later.`,
		Example: `  katalog companions 274351121
  katalog companions --mapping 01J9Z3F0W7 274351121 274313611`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCompanions,
	}

	cmd.Flags().String("mapping", "", "learned mapping id to record the proposals for")
	cmd.Flags().String("description", "", "original description of the confirmed items")
	cmd.Flags().Bool("json", false, "print proposals as JSON")

	return cmd
}

func runCompanions(cmd *cobra.Command, args []string) error {
	mappingID, _ := cmd.Flags().GetString("mapping")
	description, _ := cmd.Flags().GetString("description")
	asJSON, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{withStore: mappingID != ""})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireCatalog(); err != nil {
		return err
	}

	confirmed := make([]model.ConfirmedItem, 0, len(args))
	for _, code := range args {
		item, ok := a.provider.Get(code)
		if !ok {
			return common.NewUserError(fmt.Sprintf("Code %s is not in the catalog", code), common.ErrUnknownCode)
		}
		confirmed = append(confirmed, model.ConfirmedItem{
			Code:        item.Code,
			Name:        item.Name,
			Description: description,
		})
	}

	items := a.engine.Companions(confirmed, a.provider.Catalog().Codes())

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return fmt.Errorf("failed to encode companions: %w", err)
		}
	} else if err := cli.RenderCompanions(cmd.OutOrStdout(), items); err != nil {
		return err
	}

	if mappingID == "" || len(items) == 0 {
		return nil
	}

	if _, err := a.store.GetMappingByID(ctx, mappingID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewUserError(fmt.Sprintf("No mapping with id %s", mappingID), err)
		}
		return err
	}

	related := make([]model.RelatedItem, 0, len(items))
	for _, item := range items {
		related = append(related, model.RelatedItem{
			Code:             item.Code,
			Name:             item.Name,
			Unit:             item.Unit,
			ReasonText:       item.Reason,
			RelationshipType: model.RelationshipCompanion,
		})
	}
	if err := a.cache.RecordRelated(ctx, mappingID, related); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(fmt.Sprintf("Recorded %d related items for %s", len(related), mappingID)))
	return nil
}
