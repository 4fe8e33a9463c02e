package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"showrunner/internal/review"
)

func newReviewCommand(cmdCtx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and resolve human review items",
	}
	reviewCmd.AddCommand(newReviewListCommand(cmdCtx))
	reviewCmd.AddCommand(newReviewResolveCommand(cmdCtx))
	reviewCmd.AddCommand(newReviewDismissCommand(cmdCtx))
	return reviewCmd
}

func newReviewListCommand(cmdCtx *commandContext) *cobra.Command {
	var statusFlag string
	var pipelineFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			items, err := rt.reviews.List(cmd.Context(), review.Filter{
				Status:     review.Status(statusFlag),
				PipelineID: pipelineFlag,
			})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No review items.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReviewsTable(items))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", string(review.StatusPending), "Filter by status (pending, resolved, dismissed, or empty for all)")
	cmd.Flags().StringVar(&pipelineFlag, "pipeline", "", "Filter by run date")
	return cmd
}

func newReviewResolveCommand(cmdCtx *commandContext) *cobra.Command {
	var resolution string
	var resolvedBy string

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a review item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.reviews.Resolve(cmd.Context(), args[0], resolution, resolvedBy); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved review item %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&resolution, "resolution", "", "Resolution note")
	cmd.Flags().StringVar(&resolvedBy, "by", "", "Who resolved this item")
	_ = cmd.MarkFlagRequired("resolution")
	return cmd
}

func newReviewDismissCommand(cmdCtx *commandContext) *cobra.Command {
	var reason string
	var resolvedBy string

	cmd := &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss a review item without acting on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.reviews.Dismiss(cmd.Context(), args[0], reason, resolvedBy); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dismissed review item %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "dismissed", "Dismissal note")
	cmd.Flags().StringVar(&resolvedBy, "by", "", "Who dismissed this item")
	return cmd
}

func renderReviewsTable(items []*review.Item) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			string(item.Type),
			item.PipelineID,
			item.Stage,
			string(item.Status),
			item.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return renderTable(
		[]string{"ID", "Type", "Run", "Stage", "Status", "Created"},
		rows,
	)
}
