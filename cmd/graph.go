package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/spatialstats/occample/model"
	"github.com/spatialstats/occample/spatial"
)

var graphM int

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build the nearest-neighbor graph for a dataset and summarize it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph()
	},
}

func init() {
	graphCmd.Flags().IntVarP(&graphM, "neighbors", "m", 15, "Max nearest neighbors per site")
	rootCmd.AddCommand(graphCmd)
}

func runGraph() error {
	data, err := model.LoadData(dataFile)
	if err != nil {
		return err
	}

	g, err := spatial.BuildNeighborGraph(data.Coords, graphM)
	if err != nil {
		return errors.Wrap(err, "Could not build neighbor graph")
	}

	fmt.Printf("Sites:          %d\n", g.J)
	fmt.Printf("Max neighbors:  %d\n", g.M)
	fmt.Printf("Neighbor pairs: %d\n", g.NIndx())

	if verbose {
		for i := 0; i < g.J; i++ {
			fmt.Printf("site %d: neighbors=%v referenced-by=%v\n", i, g.Neighbors(i), g.RefBy(i))
		}
	}
	return nil
}
