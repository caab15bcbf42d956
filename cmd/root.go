package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nuisfit/reweight/fit"
	"github.com/nuisfit/reweight/fit/card"
)

var (
	logLevel  string // Log verbosity level
	cardPath  string // Path to the YAML fit card
	noCache   bool   // Disable signal reconfigures regardless of the card
	dialFlags map[string]string
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "reweight",
	Short: "Reweighting and likelihood evaluation engine for dial fits",
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadSession reads the card named by --card and builds its session. The engine's fatal
// hook stays the default logrus.Fatalf.
func loadSession() *card.Session {
	if cardPath == "" {
		logrus.Fatalf("--card is required")
	}
	c, err := card.Load(cardPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	cfg := c.EngineConfig()
	if noCache {
		cfg.SignalReconfigures = false
	}
	if iterationsPath != "" {
		cfg.RecordIterations = true
	}
	s, err := c.BuildConfig(cfg)
	if err != nil {
		logrus.Fatalf("building fit session: %v", err)
	}
	return s
}

// applyDialFlags overrides entries of x from name=value pairs.
func applyDialFlags(dials *fit.DialStore, x []float64, flags map[string]string) error {
	for name, raw := range flags {
		pos, err := dials.Position(name)
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("dial %q: invalid value %q", name, raw)
		}
		x[pos] = v
	}
	return nil
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	for _, c := range []*cobra.Command{evalCmd, fitCmd} {
		c.Flags().StringVar(&cardPath, "card", "", "Path to the YAML fit card")
		c.Flags().BoolVar(&noCache, "no-cache", false, "Disable signal reconfigures even if the card enables them")
		c.Flags().StringToStringVar(&dialFlags, "dials", nil, "Starting dial values as name=value pairs, overriding the card")
		c.Flags().StringVar(&iterationsPath, "iterations", "", "Write per-evaluation rows to this file (.csv, .yaml or .yml)")
	}
	fitCmd.Flags().IntVar(&maxEvals, "max-evals", 2000, "Maximum number of objective evaluations")
	fitCmd.Flags().Float64Var(&fitTolerance, "tolerance", 1e-6, "Stop when the best likelihood improves by less than this")

	generateCmd.Flags().StringVar(&genOut, "out", "", "Output event file (YAML)")
	generateCmd.Flags().StringVar(&genName, "name", "synthetic", "Input name stored in the file")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 42, "Seed for event generation")
	generateCmd.Flags().IntVar(&genEvents, "events", 10000, "Number of events")
	generateCmd.Flags().IntSliceVar(&genModes, "modes", nil, "Interaction modes to generate (default 1,2,11)")
	generateCmd.Flags().Float64Var(&genJitter, "weight-jitter", 0, "Relative Gaussian spread of input weights")
	generateCmd.Flags().StringVar(&genSplineForm, "spline-form", "", "Make the file spline-backed with coefficients of this form")

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(generateCmd)
}
