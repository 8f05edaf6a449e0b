// Package main provides the CLI entry point for refinequery: the
// classifier -> supervisor -> specialist fan-out -> moderator -> finalizer
// orchestration service.
//
// # Basic Usage
//
// Start the server:
//
//	refinequery serve --config refinequery.yaml
//
// Inspect thread memory:
//
//	refinequery memory show <thread_id>
//	refinequery memory clear <thread_id>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refinequery",
		Short: "Multi-perspective product-requirement query refinement service",
	}
	cmd.AddCommand(buildServeCmd())
	cmd.AddCommand(buildMemoryCmd())
	return cmd
}
