// Package main implements the varsifter command line tool: load a variant
// table, filter or query it, pair compound records and export the result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teerjk/VarSifter-sub000/internal/app"
	"github.com/teerjk/VarSifter-sub000/internal/config"
	vserrors "github.com/teerjk/VarSifter-sub000/internal/errors"
	"github.com/teerjk/VarSifter-sub000/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	// Global flags
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "varsifter",
	Short: "In-memory filtering of annotated variant call tables",
	Long: `varsifter loads a tab-delimited variant table (or a VCF file), holds it
in memory as dictionary-encoded columns and applies filters, row predicate
queries and compound-record pairing to it.

Environment variables prefixed VARSIFTER_ override the configuration file;
a .env file in the working directory is read first.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config file: %w", err)
			}
		} else {
			cfg = config.DefaultConfig()
		}
		config.LoadFromEnv(cfg)

		logger, err = logging.New(cfg.Logging, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	filterCmd.Flags().StringVar(&specFile, "spec", "", "Filter request file (YAML or JSON)")
	filterCmd.Flags().StringVar(&outFile, "out", "", "Write the rows in view to this file")
	_ = filterCmd.MarkFlagRequired("spec")

	queryCmd.Flags().StringVar(&expression, "expr", "", "Row predicate expression")
	queryCmd.Flags().StringVar(&outFile, "out", "", "Write the rows in view to this file")
	_ = queryCmd.MarkFlagRequired("expr")

	pairCmd.Flags().StringVar(&pairIDs, "ids", "", "Comma-separated row identifiers; the first is the anchor")
	pairCmd.Flags().IntVar(&pairRow, "row", -1, "Pair using the linkage list stored on this row")
	pairCmd.Flags().BoolVar(&pairSamples, "samples", false, "Include per-sample detail")
	pairCmd.MarkFlagsMutuallyExclusive("ids", "row")
	pairCmd.MarkFlagsOneRequired("ids", "row")

	exportCmd.Flags().StringVar(&outFile, "out", "", "Output file; .gz and .sz suffixes compress")
	_ = exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(columnsCmd, loadCmd, filterCmd, queryCmd, pairCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if vserrors.IsFatal(err) {
			l := logging.OrNop(logger)
			l.Error("fatal error", zap.Error(err))
			_ = l.Sync()
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openSession creates a session and loads path into it.
func openSession(ctx context.Context, path string) (*app.Session, error) {
	s, err := app.New(cfg, app.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := s.Open(ctx, path); err != nil {
		return nil, err
	}
	return s, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
