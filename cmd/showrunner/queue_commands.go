package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"showrunner/internal/topicqueue"
)

func newQueueCommand(cmdCtx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage queued topics",
	}
	queueCmd.AddCommand(newQueueListCommand(cmdCtx))
	queueCmd.AddCommand(newQueueClearCommand(cmdCtx))
	queueCmd.AddCommand(newQueueMoveCommand(cmdCtx))
	queueCmd.AddCommand(newQueueClearAbandonedCommand(cmdCtx))
	return queueCmd
}

func newQueueClearAbandonedCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-abandoned",
		Short: "Delete queued topics whose retry budget is exhausted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			removed, err := rt.topics.ClearAbandoned(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d abandoned topics\n", removed)
			return nil
		},
	}
}

func newQueueListCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			topics, err := rt.topics.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No queued topics.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTopicsTable(topics))
			return nil
		},
	}
}

func newQueueClearCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <date>",
		Short: "Remove the queued topic for a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := time.Parse(topicqueue.DateLayout, args[0]); err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", args[0])
			}

			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.topics.ClearQueuedTopic(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared queued topic for %s\n", args[0])
			return nil
		},
	}
}

func newQueueMoveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <date> <new-date>",
		Short: "Move a pending queued topic to a different date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if _, err := time.Parse(topicqueue.DateLayout, arg); err != nil {
					return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", arg)
				}
			}

			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.topics.RequeueTopic(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved queued topic from %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func renderTopicsTable(topics []*topicqueue.QueuedTopic) string {
	rows := make([][]string, 0, len(topics))
	for _, topic := range topics {
		rows = append(rows, []string{
			topic.TargetDate,
			truncate(topic.Topic, 40),
			string(topic.Status),
			topic.FailureStage,
			topic.FailureReason,
			strconv.Itoa(topic.RetryCount) + "/" + strconv.Itoa(topic.MaxRetries),
		})
	}
	return renderTable(
		[]string{"Target", "Topic", "Status", "Failed At", "Reason", "Retries"},
		rows,
		5,
	)
}
