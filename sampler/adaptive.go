package sampler

import "math"

// Indices into the spatial parameter vector theta. The nu slot only exists
// for the Matern family; every parallel array (theta, accept counters,
// tuning values) is sized by CovModel.NTheta so no nu slot is ever
// allocated, read, or adapted for the other families.
const (
	sigmaSqIndx = 0
	phiIndx     = 1
	nuIndx      = 2
)

// adaptiveMH tracks, per spatial covariance parameter, the acceptance count
// for the current batch and the persistent log step size of the logit-scale
// random-walk proposal. Once per batch the step sizes move a diminishing
// increment toward the target acceptance rate.
type adaptiveMH struct {
	accept []float64
	tuning []float64
	target float64
}

func newAdaptiveMH(nTheta int, target float64, initTuning []float64) *adaptiveMH {
	a := &adaptiveMH{
		accept: make([]float64, nTheta),
		tuning: make([]float64, nTheta),
		target: target,
	}
	copy(a.tuning, initTuning[:nTheta])
	return a
}

// step returns the proposal standard deviation for parameter p.
func (a *adaptiveMH) step(p int) float64 {
	return math.Exp(a.tuning[p])
}

// accepted counts an acceptance for parameter p in the current batch.
func (a *adaptiveMH) accepted(p int) {
	a.accept[p]++
}

// adaptBatch closes batch number batch (zero-based): every tuning value
// moves up if its batch acceptance rate beat the target, down otherwise, by
// min(0.01, 1/sqrt(batch)) so the adaptation diminishes over time. It
// returns the batch acceptance rates and the adapted log tuning values (both
// freshly allocated) and resets the counters.
func (a *adaptiveMH) adaptBatch(batch int, batchLength int) (rates []float64, tuning []float64) {
	delta := 0.01
	if batch > 0 {
		delta = math.Min(0.01, 1.0/math.Sqrt(float64(batch)))
	}

	rates = make([]float64, len(a.accept))
	tuning = make([]float64, len(a.tuning))
	for p := range a.accept {
		rates[p] = a.accept[p] / float64(batchLength)
		tuning[p] = a.tuning[p]
		if rates[p] > a.target {
			a.tuning[p] += delta
		} else {
			a.tuning[p] -= delta
		}
		a.accept[p] = 0
	}
	return rates, tuning
}
