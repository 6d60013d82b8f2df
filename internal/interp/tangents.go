package interp

import "math"

// naturalSplineSecondDerivs solves the tridiagonal system for the
// second derivatives of a natural cubic spline through (xs, ys).
func naturalSplineSecondDerivs(xs, ys []float64) []float64 {
	n := len(xs)
	d2 := make([]float64, n)
	if n < 3 {
		return d2 // two points degrade to a straight line
	}

	u := make([]float64, n-1)
	for i := 1; i < n-1; i++ {
		sig := (xs[i] - xs[i-1]) / (xs[i+1] - xs[i-1])
		p := sig*d2[i-1] + 2
		d2[i] = (sig - 1) / p
		du := (ys[i+1]-ys[i])/(xs[i+1]-xs[i]) - (ys[i]-ys[i-1])/(xs[i]-xs[i-1])
		u[i] = (6*du/(xs[i+1]-xs[i-1]) - sig*u[i-1]) / p
	}
	for i := n - 2; i >= 0; i-- {
		d2[i] = d2[i]*d2[i+1] + u[i]
	}
	return d2
}

// pchipTangents computes shape-preserving Hermite tangents after
// Fritsch and Carlson. Tangents are zero wherever the slope changes
// sign, so the interpolant never overshoots the data.
func pchipTangents(xs, ys []float64) []float64 {
	n := len(xs)
	m := make([]float64, n)
	if n == 2 {
		s := (ys[1] - ys[0]) / (xs[1] - xs[0])
		m[0], m[1] = s, s
		return m
	}

	h := make([]float64, n-1)
	delta := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h[i] = xs[i+1] - xs[i]
		delta[i] = (ys[i+1] - ys[i]) / h[i]
	}

	for i := 1; i < n-1; i++ {
		if delta[i-1]*delta[i] <= 0 {
			m[i] = 0
			continue
		}
		// Weighted harmonic mean of the neighboring slopes.
		w1 := 2*h[i] + h[i-1]
		w2 := h[i] + 2*h[i-1]
		m[i] = (w1 + w2) / (w1/delta[i-1] + w2/delta[i])
	}

	m[0] = edgeTangent(h[0], h[1], delta[0], delta[1])
	m[n-1] = edgeTangent(h[n-2], h[n-3], delta[n-2], delta[n-3])
	return m
}

// edgeTangent is the one-sided three-point endpoint formula with the
// monotonicity clamps from the pchip construction.
func edgeTangent(h0, h1, d0, d1 float64) float64 {
	t := ((2*h0+h1)*d0 - h0*d1) / (h0 + h1)
	if t*d0 <= 0 {
		return 0
	}
	if d0*d1 < 0 && math.Abs(t) > 3*math.Abs(d0) {
		return 3 * d0
	}
	return t
}

// catmullRomTangents computes centered-difference tangents, one-sided
// at the ends, giving a classic cubic interpolant.
func catmullRomTangents(xs, ys []float64) []float64 {
	n := len(xs)
	m := make([]float64, n)
	if n == 2 {
		s := (ys[1] - ys[0]) / (xs[1] - xs[0])
		m[0], m[1] = s, s
		return m
	}
	m[0] = (ys[1] - ys[0]) / (xs[1] - xs[0])
	m[n-1] = (ys[n-1] - ys[n-2]) / (xs[n-1] - xs[n-2])
	for i := 1; i < n-1; i++ {
		m[i] = (ys[i+1] - ys[i-1]) / (xs[i+1] - xs[i-1])
	}
	return m
}
