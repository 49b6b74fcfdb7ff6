package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"NetSentry/internal/config"
	"NetSentry/internal/logger"
	"NetSentry/internal/training"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	primaryCSV   string
	datasetsDir  string
	artifactsDir string
	testSize     float64
	seed         int64
	estimators   int
	maxDepth     int
	jsonReport   bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ns-train",
		Short: "Train the packet classifier and its encoders",
		Long: `ns-train merges the primary packet dataset with every auxiliary connection log,
fits the categorical encoders and the classifier, reports held-out accuracy and writes
the artifacts that ns-sentinel loads at startup.`,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Configuration file")
	rootCmd.Flags().StringVar(&primaryCSV, "primary", "", "Primary comma-separated dataset (overrides trainer.primary_csv)")
	rootCmd.Flags().StringVar(&datasetsDir, "datasets", "", "Directory of pipe-delimited auxiliary datasets (overrides trainer.datasets_dir)")
	rootCmd.Flags().StringVar(&artifactsDir, "out", "", "Artifact output directory (overrides artifacts.dir)")
	rootCmd.Flags().Float64Var(&testSize, "test-size", 0, "Held-out fraction (overrides trainer.test_size)")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "Split and forest seed (overrides trainer.seed)")
	rootCmd.Flags().IntVar(&estimators, "estimators", 0, "Number of trees (overrides trainer.num_estimators)")
	rootCmd.Flags().IntVar(&maxDepth, "max-depth", -1, "Maximum tree depth, 0 for unlimited (overrides trainer.max_depth)")
	rootCmd.Flags().BoolVar(&jsonReport, "json", false, "Print the report as JSON")

	return rootCmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Init(cfg.Logging)

	report, err := training.Run(cfg)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	return printReport(cmd.OutOrStdout(), report, jsonReport)
}

func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("primary") {
		cfg.Trainer.PrimaryCSV = primaryCSV
	}
	if flags.Changed("datasets") {
		cfg.Trainer.DatasetsDir = datasetsDir
	}
	if flags.Changed("out") {
		cfg.Artifacts.Dir = artifactsDir
	}
	if flags.Changed("test-size") {
		cfg.Trainer.TestSize = testSize
	}
	if flags.Changed("seed") {
		cfg.Trainer.Seed = seed
	}
	if flags.Changed("estimators") {
		cfg.Trainer.NumEstimators = estimators
	}
	if flags.Changed("max-depth") {
		cfg.Trainer.MaxDepth = maxDepth
	}
}

func printReport(w io.Writer, r *training.Report, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "primary rows:      %d\n", r.PrimaryRows)
	files := make([]string, 0, len(r.AuxiliaryRows))
	for name := range r.AuxiliaryRows {
		files = append(files, name)
	}
	sort.Strings(files)
	for _, name := range files {
		fmt.Fprintf(w, "auxiliary rows:    %d (%s)\n", r.AuxiliaryRows[name], name)
	}
	fmt.Fprintf(w, "dropped rows:      %d\n", r.DroppedRows)
	fmt.Fprintf(w, "samples:           %d (%d malicious)\n", r.Samples, r.MaliciousRows)
	fmt.Fprintf(w, "training set:      %d rows\n", r.TrainRows)
	fmt.Fprintf(w, "test set:          %d rows\n", r.TestRows)
	fmt.Fprintf(w, "encoder classes:   src=%d dst=%d proto=%d\n", r.SrcIPClasses, r.DstIPClasses, r.ProtoClasses)
	if len(r.NamedProtocols) > 0 {
		fmt.Fprintf(w, "named protocols:   %s (never seen live)\n", strings.Join(r.NamedProtocols, ", "))
	}
	fmt.Fprintf(w, "known-bad pairs:   %d\n", r.KnownBadPairs)
	_, err := fmt.Fprintf(w, "accuracy:          %.2f\n", r.Accuracy)
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
