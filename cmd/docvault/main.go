package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"docvault/internal/app"
	"docvault/internal/config"
	"docvault/internal/dv"

	"github.com/spf13/cobra"
)

// Exit codes by error kind.
const (
	exitError      = 1
	exitNotFound   = 2
	exitConflict   = 3
	exitWrite      = 4
	exitReadonly   = 5
	exitValidation = 6
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, dv.ErrNotFound):
		return exitNotFound
	case errors.Is(err, dv.ErrConflict):
		return exitConflict
	case errors.Is(err, dv.ErrWrite):
		return exitWrite
	case errors.Is(err, dv.ErrReadonly):
		return exitReadonly
	case errors.Is(err, dv.ErrValidation):
		return exitValidation
	default:
		return exitError
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "put", "backup create").
func newApp(ctx context.Context, operation string) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// currentUser is the default owner and creator.
func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

var rootCmd = &cobra.Command{
	Use:          "docvault",
	Short:        "Versioned document vault",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(containerCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(fsckCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}
