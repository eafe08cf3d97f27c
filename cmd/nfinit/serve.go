package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/nfinit-engine/internal/app"
	"github.com/yungbote/nfinit-engine/internal/platform/shutdown"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := shutdown.NotifyContext(cmd.Context())
			defer stop()

			a, err := app.New(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}
			defer a.Close()

			if err := a.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			return nil
		},
	}
}
