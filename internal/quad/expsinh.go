// Package quad integrates functions over the half line [0, ∞) with the
// exp-sinh (doubly exponential) substitution
//
//	x = exp(π/2 · sinh t),  dx = π/2 · cosh t · x dt
//
// followed by trapezoidal sums whose step is halved on each refinement.
package quad

import "math"

const (
	// DefaultRefinements matches the usual exp-sinh default of nine halvings.
	DefaultRefinements = 9
	DefaultTolerance   = 1e-10

	// Outside |t| <= tMax the substituted integrand is negligible for any
	// function bounded on [0, ∞) and x(t) stays far from overflow.
	tMax = 6.0
)

// ExpSinh is a semi-infinite quadrature rule. The zero value uses defaults.
type ExpSinh struct {
	Refinements int     // maximum number of step halvings
	Tolerance   float64 // relative change between levels that stops refinement
}

// Result carries the estimate and how it was obtained.
type Result struct {
	Value  float64
	Error  float64 // |last level - previous level|
	Levels int     // refinement levels actually computed
	Evals  int
}

// Integrate estimates ∫₀^∞ f(x) dx. Non-finite samples of f are clamped to
// zero, so f may overflow or be undefined at the extremes.
func (q ExpSinh) Integrate(f func(float64) float64) Result {
	refinements := q.Refinements
	if refinements <= 0 {
		refinements = DefaultRefinements
	}
	tol := q.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	var res Result
	h := 1.0
	sum := res.sample(f, 0)
	for k := 1; float64(k)*h <= tMax; k++ {
		sum += res.sample(f, float64(k)*h) + res.sample(f, -float64(k)*h)
	}
	res.Value = h * sum

	for level := 1; level <= refinements; level++ {
		h /= 2
		for k := 1; float64(k)*h <= tMax; k += 2 {
			sum += res.sample(f, float64(k)*h) + res.sample(f, -float64(k)*h)
		}
		next := h * sum
		res.Error = math.Abs(next - res.Value)
		res.Value = next
		res.Levels = level
		if level >= 2 && res.Error <= tol*math.Abs(next) {
			break
		}
	}
	return res
}

func (r *Result) sample(f func(float64) float64, t float64) float64 {
	r.Evals++
	x := math.Exp(math.Pi / 2 * math.Sinh(t))
	if x == 0 || math.IsInf(x, 0) {
		return 0
	}
	w := math.Pi / 2 * math.Cosh(t) * x
	v := f(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := v * w
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}
