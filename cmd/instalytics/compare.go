package main

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"instalytics/pkg/aggregator"
	"instalytics/pkg/errors"
	"instalytics/pkg/response"
	"instalytics/pkg/ui"
)

var compareCmd = &cobra.Command{
	Use:   "compare <username> <username> [username...]",
	Short: "Compare profiles side by side",
	Long: `Compare two or more profiles side by side.

Repeated usernames are ignored and only the first compare.max_profiles
distinct usernames are used. A comma separated list works too.`,
	Example: `  instalytics compare natgeo nasa
  instalytics compare natgeo,nasa,esa --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the API document as JSON")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	handles, err := parseHandles(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	handles = aggregator.Distinct(handles, cfg.Compare.MaxProfiles)
	if len(handles) < cfg.Compare.MinProfiles {
		return fmt.Errorf("please provide at least %d usernames to compare", cfg.Compare.MinProfiles)
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cmp, err := a.aggregator.Compare(ctx, handles)
	if err != nil {
		var partial *errors.PartialComparisonError
		if stderrors.As(err, &partial) {
			return fmt.Errorf("some profiles could not be fetched: %s", strings.Join(partial.Failed, ", "))
		}
		return fmt.Errorf("failed to compare profiles: %w", err)
	}

	view := response.Comparison(cmp.Results, time.Now())
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}

	printer.Println(ui.ComparisonTable(view))
	if len(cmp.Failed) > 0 {
		printer.Warning("Skipped", strings.Join(cmp.Failed, ", "))
	}
	return nil
}

// parseHandles splits comma separated arguments and validates each entry
func parseHandles(args []string) ([]string, error) {
	var handles []string
	for _, arg := range args {
		for _, raw := range aggregator.SplitHandles(arg) {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			h, err := parseHandle(raw)
			if err != nil {
				return nil, err
			}
			handles = append(handles, h)
		}
	}
	return handles, nil
}
