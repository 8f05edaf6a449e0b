package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/refinequery/internal/config"
	"github.com/haasonsaas/refinequery/internal/memory"
)

func buildMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage thread conversation memory",
	}
	cmd.AddCommand(buildMemoryShowCmd())
	cmd.AddCommand(buildMemoryClearCmd())
	return cmd
}

func buildMemoryShowCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "show <thread_id>",
		Short: "Print a thread's conversation history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStoreFromConfig(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := store.List(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("list thread: %w", err)
			}
			return json.NewEncoder(os.Stdout).Encode(entries)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "refinequery.yaml", "Path to YAML configuration file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum entries to print (0 = unbounded)")
	return cmd
}

func buildMemoryClearCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "clear <thread_id>",
		Short: "Delete every entry for a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStoreFromConfig(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer closeStore()

			count, err := store.DeleteThread(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("clear thread: %w", err)
			}
			fmt.Printf("cleared %d entries for thread %s\n", count, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "refinequery.yaml", "Path to YAML configuration file")
	return cmd
}

func openStoreFromConfig(ctx context.Context, configPath string) (memory.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return openStore(ctx, cfg.StoreURI, cfg.DuplicateWindow)
}
