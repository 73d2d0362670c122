package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/histoml/histoml/dataset"
	"github.com/histoml/histoml/metrics"
	"github.com/histoml/histoml/pipeline"
	"github.com/histoml/histoml/pkg/log"
)

type runCmdConfig struct {
	*rootCmdConfig
	dataFile   string
	configFile string
	minority   string
}

func runCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &runCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full evaluation pipeline on a CSV dataset",
		Long: `Runs scaling, splitting, oversampling, the per-family sweeps, and the
diagnostic ensemble on a CSV file whose first column is the sample id, last
column the subtype label, and remaining columns the gene expression values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetupLogger(logLevel(config.verbose))

			ds, err := loadCSV(config.dataFile, config.minority)
			if err != nil {
				slog.Error("loading dataset failed", log.ErrAttr(err))
				return err
			}

			cfg := pipeline.DefaultConfig()
			if config.configFile != "" {
				cfg, err = pipeline.LoadConfig(config.configFile)
				if err != nil {
					slog.Error("loading config failed", log.ErrAttr(err))
					return err
				}
			}

			level := zerolog.InfoLevel
			if config.verbose {
				level = zerolog.DebugLevel
			}
			logger := log.NewPipelineLogger(os.Stderr, level)

			result, err := pipeline.Run(ds, cfg, logger)
			if err != nil {
				slog.Error("pipeline failed", log.ErrAttr(err))
				return err
			}

			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.dataFile), "data", "d", "", "CSV file with the expression dataset")
	cmd.PersistentFlags().StringVarP(&(config.configFile), "config", "c", "", "YAML pipeline configuration")
	cmd.PersistentFlags().StringVarP(&(config.minority), "minority", "m", "", "label of the minority/positive class (default: the rarer label)")
	_ = cmd.MarkPersistentFlagRequired("data")
	return cmd
}

func logLevel(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}

// loadCSV reshapes the acquisition collaborator's tabular export into the
// fixed-schema Dataset the core consumes.
func loadCSV(path, minority string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 3 {
		return nil, fmt.Errorf("need at least id, one gene, and label columns, got %d", len(header))
	}
	genes := header[1 : len(header)-1]

	var samples []dataset.Sample
	labelCounts := map[string]int{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		features := make([]float64, len(genes))
		for j := range genes {
			v, err := strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("sample %s, gene %s: %w", record[0], genes[j], err)
			}
			features[j] = v
		}
		label := record[len(record)-1]
		labelCounts[label]++
		samples = append(samples, dataset.Sample{ID: record[0], Features: features, Label: label})
	}

	if len(labelCounts) != 2 {
		return nil, fmt.Errorf("expected exactly 2 labels, got %d", len(labelCounts))
	}

	var labels []string
	for l := range labelCounts {
		labels = append(labels, l)
	}
	// The first class is the minority/positive class.
	first, second := labels[0], labels[1]
	if minority != "" {
		if minority != first && minority != second {
			return nil, fmt.Errorf("minority label %q not present in data", minority)
		}
		if minority == second {
			first, second = second, first
		}
	} else if labelCounts[second] < labelCounts[first] {
		first, second = second, first
	}

	return dataset.New(genes, [2]string{first, second}, samples)
}

func printResult(w io.Writer, result *pipeline.Result) {
	fmt.Fprintf(w, "run %s\n\n", result.RunID)
	fmt.Fprintf(w, "%-40s %9s %9s %9s\n", "model (test partition)", "accuracy", "kappa", "auc")
	for _, pm := range result.PerModel {
		printReport(w, pm.Name, pm.Test)
	}
	printReport(w, "ensemble", result.Ensemble.Test)

	fmt.Fprintf(w, "\n%-40s %9s %9s %9s\n", "model (validation partition)", "accuracy", "kappa", "auc")
	for _, pm := range result.PerModel {
		printReport(w, pm.Name, pm.Validation)
	}
	printReport(w, "ensemble", result.Ensemble.Validation)

	if result.SelectedGenes != nil {
		fmt.Fprintf(w, "\nstepwise-selected genes (%d): %v\n", len(result.SelectedGenes), result.SelectedGenes)
	}
}

func printReport(w io.Writer, name string, r *metrics.Report) {
	fmt.Fprintf(w, "%-40s %9.4f %9.4f %9.4f\n", name, r.Accuracy, r.Kappa, r.AUC)
}
