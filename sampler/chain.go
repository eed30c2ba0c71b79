package sampler

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/spatialstats/occample/buffer"
	"github.com/spatialstats/occample/model"
	"github.com/spatialstats/occample/rand"
	"github.com/spatialstats/occample/spatial"
)

// Chain drives one sampler through its batches: burn-in, thinning, adaptive
// tuning, progress reporting, and cooperative cancellation. Chains never
// share mutable state, so independent chains run in parallel goroutines.
type Chain struct {
	ID      int
	Sampler Sampler
	Cfg     *model.RunConfig
	Samples *Samples

	// Monitor holds one circular trace buffer per spatial parameter,
	// fed with the per-batch value so long runs can be checked for drift.
	Monitor []*buffer.CircularFloat

	out io.Writer
}

// monitorWindow is the number of recent batches the drift check looks at.
const monitorWindow = 50

// NewChain builds a chain with its own seeded generator. Chain IDs start at
// 1; chain k is seeded with the configured seed plus k-1 so chains are
// reproducible individually and never share a stream.
func NewChain(id int, data *model.OccData, cfg *model.RunConfig, graph *spatial.NeighborGraph, out io.Writer) (*Chain, error) {
	gen, err := rand.NewGenerator(cfg.Seed + int64(id-1))
	if err != nil {
		return nil, errors.Wrapf(err, "Could not seed chain %d", id)
	}

	samp, err := NewSpatialOcc(data, cfg, graph, gen)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not build sampler for chain %d", id)
	}

	c := &Chain{
		ID:      id,
		Sampler: samp,
		Cfg:     cfg,
		Samples: NewSamples(cfg.NPost(), cfg.NBatch),
		Monitor: make([]*buffer.CircularFloat, samp.NTheta()),
		out:     out,
	}
	for i := range c.Monitor {
		c.Monitor[i] = buffer.NewCircularFloat(monitorWindow)
	}
	return c, nil
}

// Run executes the full nBatch x batchLength loop. The context is checked
// once per iteration boundary; cancellation aborts cleanly with whatever
// samples were already retained left intact.
func (c *Chain) Run(ctx context.Context) error {
	cfg := c.Cfg
	thinIndx := 0

	for b := 0; b < cfg.NBatch; b++ {
		for r := 0; r < cfg.BatchLength; r++ {
			select {
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "Chain %d interrupted", c.ID)
			default:
			}

			if err := c.Sampler.Step(); err != nil {
				return errors.Wrapf(err, "Chain %d failed", c.ID)
			}

			q := b*cfg.BatchLength + r
			if q >= cfg.NBurn {
				thinIndx++
				if thinIndx == cfg.NThin {
					c.Sampler.Record(c.Samples)
					thinIndx = 0
				}
			}
		}

		accept, tuning := c.Sampler.EndBatch(b)
		c.Samples.Accept = append(c.Samples.Accept, accept)
		c.Samples.Tuning = append(c.Samples.Tuning, tuning)

		for i, v := range c.Sampler.Theta() {
			c.Monitor[i].Add(v)
		}

		if cfg.Verbose && b%cfg.NReport == 0 {
			c.report(b, accept, tuning)
		}
	}

	if cfg.Verbose {
		fmt.Fprintf(c.out, "Chain %d: batch %d of %d, 100.00%%\n", c.ID, cfg.NBatch, cfg.NBatch)
	}
	return nil
}

// report prints the per-batch acceptance and tuning table.
func (c *Chain) report(batch int, accept []float64, tuning []float64) {
	cfg := c.Cfg
	fmt.Fprintf(c.out, "Chain %d: batch %d of %d, %3.2f%%\n", c.ID, batch, cfg.NBatch, 100.0*float64(batch)/float64(cfg.NBatch))
	fmt.Fprintf(c.out, "\tParameter\tAcceptance\tTuning\n")
	fmt.Fprintf(c.out, "\tphi\t\t%3.1f\t\t%1.5f\n", 100.0*accept[phiIndx], math.Exp(tuning[phiIndx]))
	if cfg.Cov == spatial.Matern {
		fmt.Fprintf(c.out, "\tnu\t\t%3.1f\t\t%1.5f\n", 100.0*accept[nuIndx], math.Exp(tuning[nuIndx]))
	}
	if !cfg.Priors.SigmaSqIG {
		fmt.Fprintf(c.out, "\tsigmaSq\t\t%3.1f\t\t%1.5f\n", 100.0*accept[sigmaSqIndx], math.Exp(tuning[sigmaSqIndx]))
	}
	fmt.Fprintf(c.out, "-------------------------------------------------\n")
}

// Drift returns, per spatial parameter, the absolute difference between the
// first- and second-half means of the recent batch trace, or NaN until the
// monitor window has filled. Large values flag parameters still moving.
func (c *Chain) Drift() []float64 {
	d := make([]float64, len(c.Monitor))
	for i, m := range c.Monitor {
		if !m.Full() {
			d[i] = math.NaN()
			continue
		}
		a, b := m.HalfMeans()
		d[i] = math.Abs(a - b)
	}
	return d
}

// RunChains builds and runs the configured number of chains concurrently.
// Chains are non-communicating; the only coordination is the shared context
// and the first-error propagation of the group.
func RunChains(ctx context.Context, data *model.OccData, cfg *model.RunConfig, graph *spatial.NeighborGraph, out io.Writer) ([]*Chain, error) {
	if cfg.Verbose {
		banner(data, cfg, out)
	}

	chains := make([]*Chain, cfg.NChains)
	for i := range chains {
		c, err := NewChain(i+1, data, cfg, graph, out)
		if err != nil {
			return nil, err
		}
		chains[i] = c
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chains {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chains, nil
}

func banner(data *model.OccData, cfg *model.RunConfig, out io.Writer) {
	fmt.Fprintf(out, "----------------------------------------\n")
	fmt.Fprintf(out, "\tModel description\n")
	fmt.Fprintf(out, "----------------------------------------\n")
	fmt.Fprintf(out, "NNGP occupancy model with Polya-Gamma latent\nvariables fit with %d sites.\n\n", data.J)
	fmt.Fprintf(out, "Samples per chain: %d (%d batches of length %d)\n", cfg.NSamples(), cfg.NBatch, cfg.BatchLength)
	fmt.Fprintf(out, "Burn-in: %d\n", cfg.NBurn)
	fmt.Fprintf(out, "Thinning rate: %d\n", cfg.NThin)
	fmt.Fprintf(out, "Number of chains: %d\n", cfg.NChains)
	fmt.Fprintf(out, "Total posterior samples: %d\n\n", cfg.NPost()*cfg.NChains)
	fmt.Fprintf(out, "Using the %s spatial correlation model.\n", cfg.Cov)
	fmt.Fprintf(out, "Using %d nearest neighbors.\n\n", cfg.M)
	fmt.Fprintf(out, "Adaptive Metropolis with target acceptance rate: %.1f\n\n", 100*cfg.AcceptRate)
}
