package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"instalytics/pkg/config"
	"instalytics/pkg/ui"
)

var (
	// Version information, set with -ldflags at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFormat  string
	noColor    bool
	token      string
	cacheDSN   string
	cacheDrv   string

	printer = ui.Stdout()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "instalytics",
	Short: "Instagram profile analytics backed by a week-long cache",
	Long: `instalytics fetches public Instagram profiles through an Apify actor,
derives engagement analytics and caches the result for seven days.

It runs as an HTTP service (instalytics serve) or answers one-off
lookups and comparisons straight from the command line.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			printer = ui.NewPrinter(os.Stdout, false)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printer.Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.instalytics.yaml or ~/.config/instalytics/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Apify API token (overrides stored token)")
	rootCmd.PersistentFlags().StringVar(&cacheDrv, "cache-driver", "", "cache store driver (memory, sqlite, postgres)")
	rootCmd.PersistentFlags().StringVar(&cacheDSN, "cache-dsn", "", "cache store DSN or file path")

	rootCmd.SetVersionTemplate(`instalytics {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "instalytics %s\n", rootCmd.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Go Version: %s\nOS/Arch: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// loadConfig applies the global flags, plus extra command flags, over the
// file and environment configuration
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{
		"token":        token,
		"cache-driver": cacheDrv,
		"cache-dsn":    cacheDSN,
		"log-level":    logLevel,
		"log-format":   logFormat,
	}
	for k, v := range extra {
		flags[k] = v
	}
	return config.Load(configFile, flags)
}
