package sampler

// Samples is the post-burn-in store: one row per retained draw for each
// parameter block, plus the per-batch acceptance-rate and tuning
// trajectories of the adaptive Metropolis step. Rows are copies; nothing in
// here aliases live sampler state.
type Samples struct {
	Beta  [][]float64
	Alpha [][]float64
	Z     [][]float64
	Psi   [][]float64
	W     [][]float64
	Theta [][]float64
	Like  [][]float64 // per-site integrated likelihood for WAIC

	SigmaSqPsi [][]float64
	BetaStar   [][]float64
	SigmaSqP   [][]float64
	AlphaStar  [][]float64

	Accept [][]float64 // per batch
	Tuning [][]float64 // per batch, pre-adaptation
}

// NewSamples returns a store with capacity for nPost retained draws and
// nBatch trajectory rows.
func NewSamples(nPost int, nBatch int) *Samples {
	return &Samples{
		Beta:       make([][]float64, 0, nPost),
		Alpha:      make([][]float64, 0, nPost),
		Z:          make([][]float64, 0, nPost),
		Psi:        make([][]float64, 0, nPost),
		W:          make([][]float64, 0, nPost),
		Theta:      make([][]float64, 0, nPost),
		Like:       make([][]float64, 0, nPost),
		SigmaSqPsi: make([][]float64, 0, nPost),
		BetaStar:   make([][]float64, 0, nPost),
		SigmaSqP:   make([][]float64, 0, nPost),
		AlphaStar:  make([][]float64, 0, nPost),
		Accept:     make([][]float64, 0, nBatch),
		Tuning:     make([][]float64, 0, nBatch),
	}
}

// NPost is the number of retained draws currently stored.
func (s *Samples) NPost() int {
	return len(s.Beta)
}

func snapshot(v []float64) []float64 {
	cp := make([]float64, len(v))
	copy(cp, v)
	return cp
}
