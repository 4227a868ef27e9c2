package main

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"instalytics/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Apify API token",
	Long: `Manage the Apify API token used to reach the scraping actor.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables INSTALYTICS_APIFY_TOKEN or APIFY_API_TOKEN (read only)

A token given with --token or in the config file always wins.`,
}

var setTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store the Apify API token securely",
	Long: `Store the Apify API token securely.

You will be prompted for the token without echo. When stdin is not a
terminal the first line of stdin is used, so the token can be piped in.`,
	Example: `  instalytics auth set-token
  echo "$APIFY_TOKEN" | instalytics auth set-token`,
	Args: cobra.NoArgs,
	RunE: runSetToken,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the token is stored",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var removeTokenCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE:  runRemoveToken,
}

func init() {
	authCmd.AddCommand(setTokenCmd, authStatusCmd, removeTokenCmd)
	rootCmd.AddCommand(authCmd)
}

func runSetToken(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), "Apify API token: ")
	value, err := readSecret(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	source, err := manager.Store(&auth.Token{Name: auth.DefaultName, Value: value})
	if err != nil {
		return err
	}

	printer.Success("Token stored")
	printer.Info("Location", string(source))
	printer.Info("Token", auth.Mask(value))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	tok, source, err := manager.Retrieve(auth.DefaultName)
	if stderrors.Is(err, auth.ErrTokenNotFound) {
		printer.Warning("No token stored")
		fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'instalytics auth set-token' to store one.")
		return nil
	}
	if err != nil {
		return err
	}

	printer.Info("Token", auth.Mask(tok.Value))
	printer.Info("Location", string(source))
	if source == auth.SourceFile {
		if dir, err := auth.ConfigDir(); err == nil {
			printer.Info("File", filepath.Join(dir, auth.TokenFile))
		}
	}
	if !tok.LastModified.IsZero() {
		printer.Info("Updated", tok.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runRemoveToken(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	if err := manager.Delete(auth.DefaultName); err != nil {
		if stderrors.Is(err, auth.ErrTokenNotFound) {
			printer.Warning("No token stored")
			return nil
		}
		return err
	}
	printer.Success("Token removed")
	return nil
}

// readSecret reads a line without echo when f is a terminal
func readSecret(f *os.File) (string, error) {
	if term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	return readLine(f)
}

func readLine(r io.Reader) (string, error) {
	input, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(stderrors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
