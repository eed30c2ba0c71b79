package spatial

import "math"

// Modified Bessel function of the second kind for real non-negative order,
// needed by the Matern correlation function. The fractional-order seed values
// come from Temme's series for small arguments and a Steed continued fraction
// for large ones; integer steps up to the requested order go through the
// standard three-term recurrence, staged in a caller-supplied scratch slice
// so concurrent evaluations never share state.

const (
	besselEps     = 1e-15
	besselMaxIter = 10000
	eulerGamma    = 0.57721566490153286
)

// BesselKScratchLen returns the scratch length required to evaluate BesselK
// for any order up to and including nuMax.
func BesselKScratchLen(nuMax float64) int {
	return 1 + int(math.Floor(nuMax))
}

// BesselK returns K_nu(x) for nu >= 0 and x > 0. The scratch slice must have
// at least BesselKScratchLen(nu) elements and is clobbered by the call.
func BesselK(nu float64, x float64, scratch []float64) float64 {
	if x <= 0 || nu < 0 {
		return math.NaN()
	}

	// Reduce to a fractional order in [-1/2, 1/2] plus n recurrence steps.
	n := int(nu + 0.5)
	mu := nu - float64(n)

	var kmu, kmu1 float64
	if x < 2.0 {
		kmu, kmu1 = besselKTemme(mu, x)
	} else {
		kmu, kmu1 = besselKSteed(mu, x)
	}

	for i := 0; i < n; i++ {
		scratch[i] = kmu
		knew := 2.0*(mu+float64(i)+1.0)/x*kmu1 + kmu
		kmu = kmu1
		kmu1 = knew
	}
	return kmu
}

// besselKTemme evaluates K_mu(x) and K_mu+1(x) for small x via Temme's
// series.
func besselKTemme(mu float64, x float64) (float64, float64) {
	x2 := 0.5 * x
	piMu := math.Pi * mu

	fact := 1.0
	if math.Abs(piMu) >= besselEps {
		fact = piMu / math.Sin(piMu)
	}
	d := -math.Log(x2)
	e := mu * d
	fact2 := 1.0
	if math.Abs(e) >= besselEps {
		fact2 = math.Sinh(e) / e
	}

	gamPlus := 1.0 / math.Gamma(1.0+mu)
	gamMinus := 1.0 / math.Gamma(1.0-mu)
	gam1 := -eulerGamma
	if math.Abs(mu) >= 1e-8 {
		gam1 = (gamMinus - gamPlus) / (2.0 * mu)
	}
	gam2 := 0.5 * (gamMinus + gamPlus)

	ff := fact * (gam1*math.Cosh(e) + gam2*fact2*d)
	sum := ff
	e = math.Exp(e)
	p := 0.5 * e / gamPlus
	q := 0.5 / (e * gamMinus)
	c := 1.0
	d2 := x2 * x2
	sum1 := p

	for i := 1; i <= besselMaxIter; i++ {
		fi := float64(i)
		ff = (fi*ff + p + q) / (fi*fi - mu*mu)
		c *= d2 / fi
		p /= fi - mu
		q /= fi + mu
		del := c * ff
		sum += del
		sum1 += c * (p - fi*ff)
		if math.Abs(del) < math.Abs(sum)*besselEps {
			break
		}
	}

	return sum, sum1 * (2.0 / x)
}

// besselKSteed evaluates K_mu(x) and K_mu+1(x) for x >= 2 via Steed's
// continued fraction CF2.
func besselKSteed(mu float64, x float64) (float64, float64) {
	b := 2.0 * (1.0 + x)
	d := 1.0 / b
	h := d
	delh := d
	q1 := 0.0
	q2 := 1.0
	a1 := 0.25 - mu*mu
	q := a1
	c := a1
	a := -a1
	s := 1.0 + q*delh

	for i := 2; i <= besselMaxIter; i++ {
		a -= 2.0 * float64(i-1)
		c = -a * c / float64(i)
		qnew := (q1 - b*q2) / a
		q1 = q2
		q2 = qnew
		q += c * qnew
		b += 2.0
		d = 1.0 / (b + a*d)
		delh = (b*d - 1.0) * delh
		h += delh
		dels := q * delh
		s += dels
		if math.Abs(dels/s) < besselEps {
			break
		}
	}
	h = a1 * h

	kmu := math.Sqrt(math.Pi/(2.0*x)) * math.Exp(-x) / s
	kmu1 := kmu * (mu + x + 0.5 - h) / x
	return kmu, kmu1
}
