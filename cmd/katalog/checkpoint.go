package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/katalog/internal/cli"
	"github.com/Veraticus/katalog/internal/storage"
)

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage learned mapping database checkpoints",
		Long: `Create, list, and delete snapshots of the learned mapping database.

Take a checkpoint before bulk reviews or pruning; "mappings prune" takes one
automatically. Only the most recent automatic checkpoints are kept.`,
		Example: `  # Snapshot before reviewing a large bill of quantities
  katalog checkpoint create --tag pre-review --description "before vykaz D.1.1"

  # List all checkpoints
  katalog checkpoint list

  # Delete an old checkpoint
  katalog checkpoint delete pre-review`,
	}

	cmd.AddCommand(createCheckpointCmd())
	cmd.AddCommand(listCheckpointsCmd())
	cmd.AddCommand(deleteCheckpointCmd())

	return cmd
}

func checkpointManager(cmd *cobra.Command) (*storage.CheckpointManager, func(), error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}
	store, err := initStorage(cmd.Context(), settings)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() { _ = store.Close() }

	manager, err := store.NewCheckpointManager()
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}
	return manager, closeStore, nil
}

func createCheckpointCmd() *cobra.Command {
	var tag string
	var description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, closeStore, err := checkpointManager(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			info, err := manager.Create(cmd.Context(), tag, description)
			if err != nil {
				return fmt.Errorf("failed to create checkpoint: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Created checkpoint %s (%s, %d mappings)\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(info.ID),
				formatFileSize(info.FileSize),
				info.Mappings())
			if info.Description != "" {
				fmt.Fprintf(out, "  Description: %s\n", info.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Checkpoint tag (generated when empty)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the checkpoint")

	return cmd
}

func listCheckpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, closeStore, err := checkpointManager(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			checkpoints, err := manager.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list checkpoints: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(checkpoints) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No checkpoints found."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join([]string{
				cli.TableHeaderStyle.Render("NAME"),
				cli.TableHeaderStyle.Render("CREATED"),
				cli.TableHeaderStyle.Render("SIZE"),
				cli.TableHeaderStyle.Render("MAPPINGS"),
				cli.TableHeaderStyle.Render("SCHEMA"),
				cli.TableHeaderStyle.Render("TYPE"),
			}, "\t"))

			for _, cp := range checkpoints {
				typeLabel := "manual"
				if cp.IsAuto {
					typeLabel = "auto"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					cli.InfoStyle.Render(cp.ID),
					formatRelativeTime(cp.CreatedAt),
					formatFileSize(cp.FileSize),
					cp.Mappings(),
					cp.SchemaVersion,
					cli.SubtleStyle.Render(typeLabel))
			}
			return w.Flush()
		},
	}
}

func deleteCheckpointCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <checkpoint-id>",
		Short: "Delete a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			out := cmd.OutOrStdout()

			if !force {
				fmt.Fprintf(out, "%s This will permanently delete checkpoint %s.\nContinue? (y/N) ",
					cli.WarningStyle.Render(cli.WarningIcon),
					cli.InfoStyle.Render(id))
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(response)), "y") {
					fmt.Fprintln(out, cli.SubtleStyle.Render("Deletion cancelled."))
					return nil
				}
			}

			manager, closeStore, err := checkpointManager(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := manager.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete checkpoint: %w", err)
			}

			fmt.Fprintf(out, "%s Deleted checkpoint %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(id))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	case d < 48*time.Hour:
		return "yesterday"
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
