package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"showrunner/internal/api"
	"showrunner/internal/logging"
	"showrunner/internal/pipeline"
	"showrunner/internal/stage"
)

const runDateLayout = "2006-01-02"

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute today's episode pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date := dateFlag
			if date == "" {
				date = time.Now().UTC().Format(runDateLayout)
			}
			if _, err := time.Parse(runDateLayout, date); err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
			}

			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			return withRunLock(rt, func(ctx context.Context) error {
				outcome, err := rt.machine.Start(ctx, date)
				if err != nil {
					return fmt.Errorf("run %s failed: %w", date, err)
				}
				printOutcome(cmd, outcome)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Run date (YYYY-MM-DD, defaults to today)")
	return cmd
}

func newResumeCommand(cmdCtx *commandContext) *cobra.Command {
	var fromFlag string

	cmd := &cobra.Command{
		Use:   "resume <date>",
		Short: "Resume a persisted run from a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]
			if _, err := time.Parse(runDateLayout, date); err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
			}
			from := stage.ID(fromFlag)
			if !stage.Valid(from) {
				return fmt.Errorf("unknown stage %q; valid stages: %v", fromFlag, stage.Order)
			}

			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			return withRunLock(rt, func(ctx context.Context) error {
				outcome, err := rt.machine.Resume(ctx, date, from)
				if err != nil {
					return fmt.Errorf("resume %s from %s failed: %w", date, from, err)
				}
				printOutcome(cmd, outcome)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fromFlag, "from", string(stage.First()), "Stage to resume from")
	return cmd
}

// withRunLock serializes pipeline execution across processes with a file
// lock and serves the API for the duration of the run.
func withRunLock(rt *runtime, fn func(ctx context.Context) error) error {
	lock := flock.New(filepath.Join(rt.cfg.Paths.DataDir, "showrunner.lock"))
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !held {
		return fmt.Errorf("another showrunner process holds the run lock")
	}
	defer lock.Unlock() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := api.New(api.Options{
		Config:   rt.cfg,
		Logger:   rt.logger,
		DB:       rt.db,
		Runs:     rt.runs,
		Registry: rt.registry,
		Reviews:  rt.reviews,
		Topics:   rt.topics,
	})
	if err != nil {
		return err
	}
	if srv != nil {
		if err := srv.Start(ctx); err != nil {
			rt.logger.Warn("api server unavailable for this run", logging.Error(err))
		}
		defer srv.Stop()
	}

	return fn(ctx)
}

func printOutcome(cmd *cobra.Command, outcome *pipeline.Outcome) {
	out := cmd.OutOrStdout()
	run := outcome.Run
	fmt.Fprintf(out, "Run %s %s", run.Date, run.Status)
	if run.Topic != "" {
		fmt.Fprintf(out, " (%s)", run.Topic)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Cost: $%.2f\n", run.TotalCost())

	if gate := outcome.Gate; gate != nil {
		fmt.Fprintf(out, "Gate: %s: %s\n", gate.Decision, gate.Reason)
		for _, issue := range gate.Issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
	}
}
