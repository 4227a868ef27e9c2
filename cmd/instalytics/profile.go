package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"instalytics/pkg/instagram"
	"instalytics/pkg/models"
	"instalytics/pkg/response"
	"instalytics/pkg/ui"
)

var (
	jsonOutput bool
	postsLimit int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Look up a single profile",
	Long: `Look up a single Instagram profile.

Profiles are served from the cache while it is fresh and fetched from the
upstream actor otherwise.`,
}

var profileGetCmd = &cobra.Command{
	Use:     "get <username>",
	Short:   "Show a profile and its analytics",
	Example: "  instalytics profile get natgeo\n  instalytics profile get natgeo --json",
	Args:    cobra.ExactArgs(1),
	RunE:    runProfileGet,
}

var profileRefreshCmd = &cobra.Command{
	Use:   "refresh <username>",
	Short: "Drop the cached profile and fetch it again",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileRefresh,
}

var profilePostsCmd = &cobra.Command{
	Use:   "posts <username>",
	Short: "List the recent posts of a cached profile",
	Long: `List the recent posts of a cached profile.

This never contacts the upstream actor; fetch the profile first with
'instalytics profile get'.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfilePosts,
}

func init() {
	for _, c := range []*cobra.Command{profileGetCmd, profileRefreshCmd, profilePostsCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "print the API document as JSON")
		profileCmd.AddCommand(c)
	}
	profilePostsCmd.Flags().IntVarP(&postsLimit, "limit", "n", 12, "maximum posts to show in the table (0 for all)")
	rootCmd.AddCommand(profileCmd)
}

func runProfileGet(cmd *cobra.Command, args []string) error {
	return lookupProfile(cmd, args[0], false)
}

func runProfileRefresh(cmd *cobra.Command, args []string) error {
	return lookupProfile(cmd, args[0], true)
}

func lookupProfile(cmd *cobra.Command, raw string, refresh bool) error {
	handle, err := parseHandle(raw)
	if err != nil {
		return err
	}

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

	if err := a.requireToken(); err != nil && refresh {
		return err
	}

	lookup := a.aggregator.Profile
	if refresh {
		lookup = a.aggregator.Refresh
	}
	r, err := lookup(ctx, handle)
	if err != nil {
		return fmt.Errorf("failed to fetch @%s: %w", handle, err)
	}

	view := response.Profile(r.Profile, r.Source, time.Now())
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}

	printer.Println(ui.ProfileTable(view))
	printer.Println(ui.PostsTable(view.RecentPosts, 5))
	printer.Highlight(provenance(view.Meta))
	return nil
}

// provenance tells the operator whether the upstream was called and how long
// the record stays cached
func provenance(meta response.Meta) string {
	origin := "Fetched from the scraping actor"
	if meta.DataSource == models.SourceCache {
		origin = "Served from cache"
	}
	return fmt.Sprintf("%s, cached until %s", origin, meta.CacheExpiry.Local().Format("2006-01-02 15:04"))
}

func runProfilePosts(cmd *cobra.Command, args []string) error {
	handle, err := parseHandle(args[0])
	if err != nil {
		return err
	}

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

	p, err := a.aggregator.Posts(ctx, handle)
	if err != nil {
		return fmt.Errorf("@%s is not cached; run 'instalytics profile get %s' first", handle, handle)
	}

	view := response.Posts(p)
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}
	printer.Println(ui.PostsTable(view.Posts, postsLimit))
	printer.Info("Total posts", fmt.Sprint(view.Total))
	return nil
}

// parseHandle normalizes a command line username the way the API does
func parseHandle(raw string) (string, error) {
	handle, ok := instagram.NormalizeHandle(raw)
	if !ok {
		return "", fmt.Errorf("invalid username %q", raw)
	}
	return handle, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
