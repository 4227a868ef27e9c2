package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"instalytics/internal/warmer"
	"instalytics/pkg/aggregator"
	"instalytics/pkg/ratelimit"
	"instalytics/pkg/ui"
)

var (
	warmFile    string
	warmForce   bool
	warmWorkers int
	warmNotify  bool
	warmVerbose bool
)

var warmCmd = &cobra.Command{
	Use:   "warm [username...]",
	Short: "Prefetch profiles into the cache",
	Long: `Prefetch many profiles into the cache with a small worker pool.

Profiles that are still fresh are skipped unless --force is given. Upstream
calls are paced by warmer.requests_per_minute across all workers.`,
	Example: `  instalytics warm natgeo nasa esa
  instalytics warm --file handles.txt --workers 5 --notify`,
	RunE: runWarm,
}

func init() {
	warmCmd.Flags().StringVarP(&warmFile, "file", "f", "", "read usernames from a file, one per line ('-' for stdin)")
	warmCmd.Flags().BoolVar(&warmForce, "force", false, "refetch profiles that are still cached")
	warmCmd.Flags().IntVarP(&warmWorkers, "workers", "w", 0, "number of concurrent workers (default from config)")
	warmCmd.Flags().BoolVar(&warmNotify, "notify", false, "send a desktop notification when done")
	warmCmd.Flags().BoolVarP(&warmVerbose, "verbose", "v", false, "print one line per profile instead of a progress bar")
	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, args []string) error {
	handles, err := warmHandles(args, warmFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("no usernames given; pass them as arguments or with --file")
	}

	cfg, err := loadConfig(map[string]interface{}{"workers": warmWorkers})
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireToken(); err != nil {
		return err
	}

	limiter := ratelimit.NewTokenBucket(cfg.Warmer.RequestsPerMinute, time.Minute)
	pool := warmer.NewPool(ctx, cfg.Warmer.Workers, a.aggregator, a.cache, limiter, a.log, a.metrics)

	printer.Info("Warming", fmt.Sprintf("%d profiles with %d workers", len(handles), cfg.Warmer.Workers))
	progress := ui.NewWarmProgress(printer, len(handles), warmVerbose)
	summary := pool.Warm(handles, warmForce, func(r warmer.Result) {
		switch r.Status {
		case warmer.StatusCached:
			progress.Cached(r.Job.Handle)
		case warmer.StatusFetched:
			progress.Fetched(r.Job.Handle)
		default:
			progress.Failed(r.Job.Handle, r.Error)
		}
	})
	progress.Complete()

	if warmNotify {
		n := ui.NewNotifier(printer)
		msg := fmt.Sprintf("%d fetched, %d cached, %d failed", summary.Fetched, summary.Cached, len(summary.Failed))
		if len(summary.Failed) > 0 {
			n.Error("instalytics warm finished with errors", msg)
		} else {
			n.Success("instalytics warm finished", msg)
		}
	}

	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d of %d profiles failed", len(summary.Failed), len(handles))
	}
	return nil
}

// warmHandles merges argument and file handles, validated and deduplicated.
// Blank lines and lines starting with '#' are ignored.
func warmHandles(args []string, file string, stdin io.Reader) ([]string, error) {
	raw := append([]string(nil), args...)

	if file != "" {
		var r io.Reader = stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", file, err)
			}
			defer f.Close()
			r = f
		}

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
	}

	handles, err := parseHandles(raw)
	if err != nil {
		return nil, err
	}
	return aggregator.Distinct(handles, 0), nil
}
