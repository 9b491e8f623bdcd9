package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/config"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/core"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/metrics"
)

var (
	// Global flags
	configFile  string
	rootDir     string
	verbose     bool
	jsonOutput  bool
	dumpMetrics bool

	registry = prometheus.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:   "kpm",
	Short: "KiCad library index, validator and cross-index",
	Long: `kpm indexes KiCad symbol and footprint libraries, validates them
against property rules and maps parts to the projects that use them.

Examples:
  kpm scan                            # Refresh the library caches
  kpm validate --lib Device           # Validate one library
  kpm xref Device:R                   # Projects using Device:R
  kpm resolve footprint Resistor_SMD:R_0603
  kpm set-property Device R MPN RC0603FR-0710KL
  kpm paths resolve '${BASE_DIR}/symbols'`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if !dumpMetrics {
			return nil
		}
		return writeMetrics()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultFile, "configuration file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "path root substituted for ${BASE_DIR} (overrides path_root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "print collected metrics on exit")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		cfg.PathRoot = rootDir
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newEngine() (*core.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return core.New(cfg, core.WithMetrics(metrics.New(registry)))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDiagnostics(diags []string) {
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, warningStyle.Render("warning:"), d)
	}
}

func writeMetrics() error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			return err
		}
	}
	return nil
}
