package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootCmdConfig struct {
	verbose bool
}

func main() {
	if err := cliParser().Execute(); err != nil {
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "histoml",
		Short: "histoml classifies breast-tumor subtypes from gene expression",
		Long: `A tool to run the histoml evaluation pipeline: robust scaling,
stratified splitting, minority oversampling, multi-model training with
hyperparameter sweeps, and accuracy-weighted ensembling.`,
	}
	config := &rootCmdConfig{}
	rootCmd.PersistentFlags().BoolVarP(&(config.verbose), "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd(), runCmd(config))
	return rootCmd
}
