package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/spatialstats/occample/model"
	"github.com/spatialstats/occample/sampler"
	"github.com/spatialstats/occample/spatial"
)

var outDir string

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the spatial occupancy model and write posterior samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFit()
	},
}

func init() {
	fitCmd.Flags().StringVarP(&outDir, "out", "o", "samples", "Output directory for posterior sample CSVs")
	rootCmd.AddCommand(fitCmd)
}

func runFit() error {
	data, err := model.LoadData(dataFile)
	if err != nil {
		return err
	}
	if configFile == "" {
		return errors.Errorf("fit requires a run configuration (--config)")
	}
	cfg, err := model.LoadRunConfig(configFile, data)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Verbose = true
	}

	if cfg.NThreads > runtime.NumCPU() {
		fmt.Printf("Requested %d threads but only %d CPUs are usable - running with %d\n", cfg.NThreads, runtime.NumCPU(), runtime.NumCPU())
		cfg.NThreads = runtime.NumCPU()
	}

	graph, err := spatial.BuildNeighborGraph(data.Coords, cfg.M)
	if err != nil {
		return errors.Wrap(err, "Could not build neighbor graph")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	chains, err := sampler.RunChains(ctx, data, cfg, graph, os.Stdout)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "Could not create output directory %s", outDir)
	}
	for _, c := range chains {
		if err := writeChain(c); err != nil {
			return err
		}
	}

	fmt.Printf("Wrote %d chain(s) to %s\n", len(chains), outDir)
	return nil
}

// writeChain emits one CSV per parameter block, one retained draw per row.
func writeChain(c *sampler.Chain) error {
	blocks := map[string][][]float64{
		"beta":   c.Samples.Beta,
		"alpha":  c.Samples.Alpha,
		"z":      c.Samples.Z,
		"psi":    c.Samples.Psi,
		"w":      c.Samples.W,
		"theta":  c.Samples.Theta,
		"like":   c.Samples.Like,
		"accept": c.Samples.Accept,
		"tune":   c.Samples.Tuning,
	}
	if len(c.Samples.SigmaSqPsi) > 0 {
		blocks["sigmaSqPsi"] = c.Samples.SigmaSqPsi
		blocks["betaStar"] = c.Samples.BetaStar
	}
	if len(c.Samples.SigmaSqP) > 0 {
		blocks["sigmaSqP"] = c.Samples.SigmaSqP
		blocks["alphaStar"] = c.Samples.AlphaStar
	}

	for name, rows := range blocks {
		fn := filepath.Join(outDir, fmt.Sprintf("chain%d-%s.csv", c.ID, name))
		if err := writeCSV(fn, rows); err != nil {
			return errors.Wrapf(err, "Could not write %s samples", name)
		}
	}
	return nil
}

func writeCSV(filename string, rows [][]float64) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	rec := []string{}
	for _, row := range rows {
		rec = rec[:0]
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
