package rand

import "math"

// Polya-Gamma sampling via Devroye's exact alternating-series method. A
// PG(1, z) draw is X/4 where X comes from the tilted Jacobi density J*(1,
// z/2); that density is sampled by proposing from a mixture of a truncated
// inverse Gaussian (left of the truncation point) and an exponential tail,
// then accepting against the partial sums of the series expansion.

// truncPoint splits the Jacobi density into its two proposal regions.
const truncPoint = 0.64

// PolyaGamma returns a draw from PG(b, z) for positive integer b, as the sum
// of b independent PG(1, z) draws. b is rounded to the nearest integer; the
// occupancy models only ever need integer visit counts.
func (g *Generator) PolyaGamma(b float64, z float64) float64 {
	n := int(b + 0.5)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += g.polyaGamma1(z)
	}
	return sum
}

// polyaGamma1 draws from PG(1, z).
func (g *Generator) polyaGamma1(z float64) float64 {
	z = 0.5 * math.Abs(z)
	fz := 0.125*math.Pi*math.Pi + 0.5*z*z
	pLeft := massTexpon(z)

	for {
		var x float64
		if g.Float64() < pLeft {
			// Exponential tail beyond the truncation point.
			x = truncPoint + g.Exp()/fz
		} else {
			x = g.truncInvGauss(z)
		}

		// Alternating series accept/reject (Devroye). The odd partial sums
		// bound the density from below, the even ones from above.
		s := jacobiCoef(0, x)
		y := g.Float64() * s
		for n := 1; ; n++ {
			if n%2 == 1 {
				s -= jacobiCoef(n, x)
				if y <= s {
					return 0.25 * x
				}
			} else {
				s += jacobiCoef(n, x)
				if y > s {
					break // reject, draw a fresh proposal
				}
			}
		}
	}
}

// jacobiCoef is the nth coefficient of the series expansion of the Jacobi
// density at x, using the small-x form left of the truncation point and the
// large-x form to the right.
func jacobiCoef(n int, x float64) float64 {
	h := float64(n) + 0.5
	if x > truncPoint {
		d := math.Pi * h
		return d * math.Exp(-0.5*d*d*x)
	}
	return math.Pi * h * math.Pow(2.0/(math.Pi*x), 1.5) * math.Exp(-2.0*h*h/x)
}

// massTexpon is the probability that a J*(1, z) proposal comes from the
// exponential tail rather than the inverse-Gaussian body.
func massTexpon(z float64) float64 {
	t := truncPoint
	fz := 0.125*math.Pi*math.Pi + 0.5*z*z

	b := math.Sqrt(1.0/t) * (t*z - 1.0)
	a := -math.Sqrt(1.0/t) * (t*z + 1.0)

	x0 := math.Log(fz) + fz*t
	xb := x0 - z + logNormCDF(b)
	xa := x0 + z + logNormCDF(a)

	qdivp := 4.0 / math.Pi * (math.Exp(xb) + math.Exp(xa))
	return 1.0 / (1.0 + qdivp)
}

// logNormCDF is log Phi(x) for the standard normal.
func logNormCDF(x float64) float64 {
	return math.Log(0.5 * math.Erfc(-x/math.Sqrt2))
}

// truncInvGauss draws an inverse Gaussian with mean 1/z truncated to
// (0, truncPoint].
func (g *Generator) truncInvGauss(z float64) float64 {
	t := truncPoint
	x := t + 1.0
	if 1.0/z > t {
		// Large mean (includes z == 0): sample a scaled chi-square proposal
		// and thin with the exp(-z^2 x / 2) tilt.
		for {
			e1 := g.Exp()
			e2 := g.Exp()
			for e1*e1 > 2.0*e2/t {
				e1 = g.Exp()
				e2 = g.Exp()
			}
			x = t / ((1.0 + t*e1) * (1.0 + t*e1))
			if g.Float64() <= math.Exp(-0.5*z*z*x) {
				break
			}
		}
		return x
	}

	// Small mean: standard inverse-Gaussian transform, rejecting draws
	// beyond the truncation point.
	mu := 1.0 / z
	for x > t {
		y := g.StdNormal()
		y = y * y
		muY := mu * y
		x = mu + 0.5*mu*muY - 0.5*mu*math.Sqrt(4.0*muY+muY*muY)
		if g.Float64() > mu/(mu+x) {
			x = mu * mu / x
		}
	}
	return x
}
