package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"docvault/internal/dv"
	"docvault/internal/metrics"

	"github.com/spf13/cobra"
)

// fsck command
var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Verify files against the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "fsck")
		if err != nil {
			return err
		}
		defer a.Close()

		problems, err := a.Check(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range problems {
			fmt.Println(p)
		}
		if len(problems) > 0 {
			return fmt.Errorf("%w: %d problem(s) found", dv.ErrConflict, len(problems))
		}
		fmt.Println("No problems found.")
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the catalog database",
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the catalog schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "db status")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.CatalogStatus()
		if err != nil {
			return err
		}
		fmt.Println(st)
		return nil
	},
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the catalog schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "db schema")
		if err != nil {
			return err
		}
		defer a.Close()

		schema, err := a.CatalogSchema(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(schema)
		return nil
	},
}

// serve-metrics command
var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve Prometheus metrics until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		interval, _ := cmd.Flags().GetDuration("check-interval")
		ctx := cmd.Context()

		a, err := newApp(ctx, "serve-metrics")
		if err != nil {
			return err
		}
		defer a.Close()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()
		fmt.Printf("Serving metrics on %s/metrics\n", addr)

		var tick <-chan time.Time
		if interval > 0 {
			t := time.NewTicker(interval)
			defer t.Stop()
			tick = t.C
		}
		for {
			select {
			case err := <-errc:
				return err
			case <-tick:
				if _, err := a.Check(ctx); err != nil && !errors.Is(err, context.Canceled) {
					fmt.Printf("integrity check failed: %v\n", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
				if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}
		}
	},
}

func init() {
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbSchemaCmd)

	serveMetricsCmd.Flags().String("addr", "127.0.0.1:9464", "Listen address")
	serveMetricsCmd.Flags().Duration("check-interval", 0, "Run an integrity check at this interval (0 disables)")
}
