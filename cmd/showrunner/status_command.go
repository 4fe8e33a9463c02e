package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"showrunner/internal/fallback"
	"showrunner/internal/pipeline"
	"showrunner/internal/review"
	"showrunner/internal/stage"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int
	var dateFlag string
	var healthFlag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent runs and pending work",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if healthFlag {
				return printHealth(cmd, rt)
			}
			if dateFlag != "" {
				return printRunDetail(cmd, rt, dateFlag)
			}

			runs, err := rt.runs.List(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
			} else {
				fmt.Fprintln(out, renderRunsTable(runs))
			}

			pending, err := rt.reviews.List(ctx, review.Filter{Status: review.StatusPending})
			if err != nil {
				return err
			}
			queued, err := rt.topics.List(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pending reviews: %d\n", len(pending))
			fmt.Fprintf(out, "Queued topics: %d\n", len(queued))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	cmd.Flags().StringVar(&dateFlag, "date", "", "Show the full stage record for one run")
	cmd.Flags().BoolVar(&healthFlag, "health", false, "Check stage and database readiness")
	return cmd
}

func printHealth(cmd *cobra.Command, rt *runtime) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	rows := make([][]string, 0, len(stage.Order)+1)
	dbState := "ok"
	if _, err := rt.db.CheckHealth(ctx); err != nil {
		dbState = err.Error()
	}
	rows = append(rows, []string{"database", dbState, ""})

	allReady := dbState == "ok"
	for _, h := range rt.registry.HealthChecks(ctx) {
		state := "ready"
		if !h.Ready {
			state = "not ready"
			allReady = false
		}
		rows = append(rows, []string{h.Name, state, h.Detail})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Component", "State", "Detail"},
		rows,
	))
	if !allReady {
		return fmt.Errorf("one or more components are not ready")
	}
	return nil
}

func printRunDetail(cmd *cobra.Command, rt *runtime, date string) error {
	run, err := rt.runs.Get(cmd.Context(), date)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run found for %s", date)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s", run.Date, run.Status)
	if run.Topic != "" {
		fmt.Fprintf(out, " (%s)", run.Topic)
	}
	fmt.Fprintln(out)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
	}

	rows := make([][]string, 0, len(stage.Order))
	for _, id := range stage.Order {
		record, ok := run.Stages[id]
		if !ok {
			rows = append(rows, []string{string(id), "pending", "", "", ""})
			continue
		}
		providerName := ""
		if record.Provider != nil {
			providerName = record.Provider.Name
			if record.Provider.Tier == fallback.TierFallback {
				providerName += " (fallback)"
			}
		}
		rows = append(rows, []string{
			string(id),
			string(record.Status),
			providerName,
			strconv.FormatInt(record.DurationMs, 10) + "ms",
			"$" + strconv.FormatFloat(record.Cost, 'f', 2, 64),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Status", "Provider", "Duration", "Cost"},
		rows,
		3, 4,
	))
	fmt.Fprintf(out, "Total cost: $%.2f\n", run.TotalCost())

	if !run.Quality.Empty() {
		fmt.Fprintf(out, "Degraded: %v\n", run.Quality.DegradedStages)
		fmt.Fprintf(out, "Fallbacks: %v\n", run.Quality.FallbacksUsed)
		fmt.Fprintf(out, "Flags: %v\n", run.Quality.Flags)
	}
	return nil
}

func renderRunsTable(runs []*pipeline.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		topic := truncate(run.Topic, 40)
		duration := ""
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			run.Date,
			string(run.Status),
			string(run.CurrentStage),
			topic,
			duration,
			"$" + strconv.FormatFloat(run.TotalCost(), 'f', 2, 64),
		})
	}
	return renderTable(
		[]string{"Date", "Status", "Stage", "Topic", "Duration", "Cost"},
		rows,
		4, 5,
	)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-3]) + "..."
}
