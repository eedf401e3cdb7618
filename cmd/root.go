// =============================================================================
// Pay Equity Processor - Root Command
// =============================================================================
//
// This file defines the root command and the shared start-up steps of the
// subcommands.
//
// COBRA CLI STRUCTURE:
//   rootCmd (payequity)
//   ├── processCmd (payequity process)
//   ├── serveCmd   (payequity serve)
//   ├── updateCmd  (payequity update)
//   └── versionCmd (payequity version)
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/payequity/internal/config"
	"github.com/ginjaninja78/payequity/internal/pipeline"
	"github.com/ginjaninja78/payequity/pkg/logger"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose switches logging to debug level.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "payequity",
	Short: "Pay equity processor - equalize payroll registers and report gender pay gaps",
	Long: `payequity reads payroll register exports (xlsx workbooks, possibly
password-protected, or CSV), equalizes every salary to a full-time annual
basis and reports the gender pay gap per professional category.

Each run produces:
  - A normalized workbook with the equalized amounts (DATOS_PROCESADOS)
  - A PDF report with the per-category and per-complement analysis
  - A validation log when some rows could not be used

Example Usage:
  payequity process --file registro.xlsx --password secreto
  payequity process --dir ./input --report mean
  payequity serve --addr :8080`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// APPLICATION SETUP
// =============================================================================

// app bundles what the subcommands share.
type app struct {
	cfg      *config.MainConfig
	log      *logger.Logger
	pipeline *pipeline.Pipeline
}

// setup loads the configuration and the layout profiles, builds the logger
// and the pipeline, and creates the input and output directories.
func setup() (*app, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Env: cfg.Env, Level: level})

	profiles, err := config.LoadLayoutProfiles(cfg.LayoutsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load layout profiles: %w", err)
	}
	log.Debug().Strs("layouts", profiles.Names()).Msg("Loaded layout profiles")

	p := pipeline.New(cfg, profiles, log)
	if err := p.Files().EnsureDirectories(); err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		pipeline: p,
	}, nil
}
