package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nfinit",
		Short: "nfinit geometry engine",
		Long: `nfinit executes geometry scripts against a CAD kernel and exports the
resulting part as GLB, STEP, BREP or STL.

Run without a subcommand to start the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serve := newServeCmd()
	root.RunE = serve.RunE
	root.AddCommand(serve, newExportCmd(), newPreviewCmd(), newKernelsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nfinit: %v\n", err)
		os.Exit(1)
	}
}
