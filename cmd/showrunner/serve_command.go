package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"showrunner/internal/api"
)

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API without running the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cmdCtx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

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
			if srv == nil {
				return errors.New("no api bind address configured; set paths.api_bind")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := srv.Start(ctx); err != nil {
				return err
			}
			defer srv.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "API listening on %s\n", srv.Addr())
			<-ctx.Done()
			return nil
		},
	}
}
