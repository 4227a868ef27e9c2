package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"instalytics/internal/janitor"
	"instalytics/pkg/response"
	"instalytics/pkg/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the profile cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached profiles, most followed first",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <username> [username...]",
	Short: "Remove profiles from the cache",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheDelete,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every expired profile now",
	Args:  cobra.NoArgs,
	RunE:  runCachePurge,
}

func init() {
	cacheListCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the API document as JSON")
	cacheCmd.AddCommand(cacheListCmd, cacheDeleteCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	view := response.Listing(a.aggregator.List(ctx))
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}
	if view.Count == 0 {
		printer.Warning("No profiles cached")
		return nil
	}
	printer.Println(ui.ListingTable(view, time.Now()))
	return nil
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, raw := range args {
		handle, err := parseHandle(raw)
		if err != nil {
			return err
		}
		removed, err := a.aggregator.Invalidate(ctx, handle)
		if err != nil {
			return fmt.Errorf("failed to remove @%s: %w", handle, err)
		}
		if removed {
			printer.Success("Removed @" + handle)
		} else {
			printer.Warning("Not cached", "@"+handle)
		}
	}
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := janitor.New(a.cache, a.log, a.metrics).RunOnce(ctx)
	if err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("Purged %d expired profiles", n))
	return nil
}
