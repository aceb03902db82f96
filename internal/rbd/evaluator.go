package rbd

import (
	"math"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/quad"
)

// Evaluate returns R(t) for the model. Children that produce no value are
// skipped in both series and parallel compositions (they contribute nothing,
// neither certainty nor failure); a composition with no valued child has no
// value itself.
func Evaluate(m *Model, t float64) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch m.Kind {
	case KindLeaf:
		if m.Rate == 0 {
			return 1, true
		}
		return math.Exp(-m.Rate * t), true

	case KindSeries:
		r, valued := 1.0, false
		for _, c := range m.Children {
			if v, ok := Evaluate(c, t); ok {
				r *= v
				valued = true
			}
		}
		return r, valued

	case KindParallel:
		q, valued := 1.0, false
		for _, c := range m.Children {
			if v, ok := Evaluate(c, t); ok {
				q *= 1 - v
				valued = true
			}
		}
		return 1 - q, valued
	}
	return 0, false
}

// MTBF returns ∫₀^∞ R(t) dt. A model that never decays has an unbounded
// MTBF (+Inf); a model that is already failed at t→0⁺ has zero.
func MTBF(m *Model, q quad.ExpSinh) float64 {
	if !m.Decays() {
		return math.Inf(1)
	}
	if r, ok := Evaluate(m, math.SmallestNonzeroFloat64); !ok || r == 0 {
		return 0
	}
	return q.Integrate(func(t float64) float64 {
		r, ok := Evaluate(m, t)
		if !ok || math.IsNaN(r) || math.IsInf(r, 0) {
			return 0
		}
		return r
	}).Value
}
