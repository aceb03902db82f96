// Package reliability derives the full set of element parameters from the
// one that is authoritative, under the exponential lifetime model R(t) = e^(-λt).
package reliability

import (
	"errors"
	"fmt"
	"math"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
)

// ErrInvalidInputData reports a reliability set-point outside (0, 1) or a
// set-point time that is not positive.
var ErrInvalidInputData = errors.New("invalid_input_data")

// Derive fills in failure rate, MTBF, reliability and failure probability
// from the first authoritative input present, in precedence order:
// reliability set-point, failure rate, MTBF, reliability, failure probability.
// Reliability and failure probability need a timespan; without one they stay
// absent (or, for the last two rules, nothing can be derived). Non-finite
// results come back absent.
func Derive(v node.Variables, timespan *float64) (node.Variables, error) {
	var out node.Variables
	at := func(lambda float64) {
		if timespan == nil {
			return
		}
		r := math.Exp(-lambda * *timespan)
		out.Reliability = set(r)
		out.FailureProbability = set(1 - r)
	}

	switch {
	case v.SetReliability != nil && v.SetReliabilityTime != nil:
		rs, ts := *v.SetReliability, *v.SetReliabilityTime
		if !(rs > 0 && rs < 1) || !(ts > 0) {
			return node.Variables{}, fmt.Errorf("set reliability %g at %g: %w", rs, ts, ErrInvalidInputData)
		}
		out.SetReliability = set(rs)
		out.SetReliabilityTime = set(ts)
		lambda := math.Log(1/rs) / ts
		out.FailureRate = set(lambda)
		out.MTBF = set(1 / lambda)
		if timespan != nil {
			r := math.Pow(rs, *timespan/ts)
			out.Reliability = set(r)
			out.FailureProbability = set(1 - r)
		}

	case v.FailureRate != nil:
		lambda := *v.FailureRate
		out.FailureRate = set(lambda)
		out.MTBF = set(1 / lambda)
		at(lambda)

	case v.MTBF != nil:
		lambda := 1 / *v.MTBF
		out.FailureRate = set(lambda)
		out.MTBF = set(*v.MTBF)
		at(lambda)

	case v.Reliability != nil && timespan != nil:
		r := *v.Reliability
		lambda := rateOf(r, *timespan)
		out.Reliability = set(r)
		out.FailureProbability = set(1 - r)
		out.FailureRate = set(lambda)
		out.MTBF = set(1 / lambda)

	case v.FailureProbability != nil && timespan != nil:
		q := *v.FailureProbability
		r := 1 - q
		lambda := rateOf(r, *timespan)
		out.FailureProbability = set(q)
		out.Reliability = set(r)
		out.FailureRate = set(lambda)
		out.MTBF = set(1 / lambda)

	default:
		return v.Clone(), nil
	}
	return out, nil
}

// rateOf returns the constant failure rate giving reliability r after t.
// r == 1 yields +0, never -0.
func rateOf(r, t float64) float64 {
	return math.Log(1/r)/t + 0
}

// set returns a pointer to f, or nil when f is not a finite number.
func set(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
