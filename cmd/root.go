// Package cmd implements the occample command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dataFile string
var configFile string
var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "occample",
	Short: "Spatial occupancy model MCMC sampling",
	Long: `occample fits hierarchical Bayesian spatial occupancy models to
site-by-visit detection/non-detection data. Among other features:

  - An NNGP (nearest-neighbor Gaussian process) sparse spatial approximation
  - A Polya-Gamma augmented Gibbs sampler for the logistic likelihoods
  - Adaptive Metropolis updates for the spatial covariance parameters
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main() and only happens once.
func Execute() {
	rootCmd.PersistentFlags().StringVarP(&dataFile, "data", "d", "", "JSON data file (sites, visits, design matrices)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML run configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose progress reporting")

	rootCmd.MarkPersistentFlagRequired("data")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
