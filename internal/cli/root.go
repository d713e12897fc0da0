// Package cli implements the fares command: the HTTP server plus two offline
// lookups that read the same workbook through the same Store.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/brt-fare-chart/internal/config"
	"github.com/iliyamo/brt-fare-chart/internal/fares"
	"github.com/iliyamo/brt-fare-chart/internal/handler"
	"github.com/iliyamo/brt-fare-chart/internal/logging"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfg    config.Config
	logger *log.Logger
}

// Execute runs the command tree with args. With no subcommand it serves.
func Execute(ctx context.Context, args []string) error {
	root := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{}
	var (
		workbook string
		strict   bool
		verbose  bool
	)

	root := &cobra.Command{
		Use:          "fares",
		Short:        "Serve and query a stop-to-stop BRT fare chart",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workbook") {
				cfg.WorkbookPath = workbook
			}
			if cmd.Flags().Changed("strict") {
				cfg.StrictRows = strict
			}
			if verbose {
				cfg.LogLevel = "debug"
			}
			a.cfg = cfg
			a.logger = logging.New(errOut, cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&workbook, "workbook", "", "path to the fare chart workbook (overrides FARES_WORKBOOK)")
	root.PersistentFlags().BoolVar(&strict, "strict", false, "reject rows whose length differs from the stop count")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	})
	root.AddCommand(a.stopsCmd())
	root.AddCommand(a.fareCmd())
	return root
}

func (a *app) store() *fares.Store {
	src := fares.FileSource{Path: a.cfg.WorkbookPath, Strict: a.cfg.StrictRows, Logger: a.logger}
	return fares.NewStore(src, fares.WithLogger(a.logger))
}

func (a *app) stopsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stops",
		Short: "Print the stop names as a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stops, err := a.store().Stops(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stops)
		},
	}
}

func (a *app) fareCmd() *cobra.Command {
	var q fares.Query
	cmd := &cobra.Command{
		Use:   "fare",
		Short: "Print the fare between two stops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := q.Validate(); err != nil {
				return err
			}
			fare, err := a.store().Fare(cmd.Context(), q.From, q.To)
			if err != nil {
				return fmt.Errorf("fare %q -> %q: %w", q.From, q.To, err)
			}
			return writeJSON(cmd.OutOrStdout(), handler.FareResponse{From: q.From, To: q.To, Fare: fare})
		},
	}
	cmd.Flags().StringVar(&q.From, "from", "", "origin stop name")
	cmd.Flags().StringVar(&q.To, "to", "", "destination stop name")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}
