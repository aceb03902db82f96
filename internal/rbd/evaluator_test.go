package rbd

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/quad"
)

func approx(a, b, relTol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= relTol*math.Max(math.Abs(a), math.Abs(b))
}

func TestEvaluate_Leaf(t *testing.T) {
	cases := []struct {
		name string
		rate float64
		t    float64
		want float64
	}{
		{"zero rate is certain", 0, 1e9, 1},
		{"at time zero", 0.5, 0, 1},
		{"decays", 0.001, 1000, math.Exp(-1)},
		{"infinite rate", math.Inf(1), 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Evaluate(Leaf(tc.rate), tc.t)
			if !ok {
				t.Fatalf("expected a value")
			}
			if !approx(got, tc.want, 1e-12) {
				t.Errorf("R = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluate_SeriesScenario(t *testing.T) {
	m := Series(Leaf(0.001), Leaf(0.002))
	r, ok := Evaluate(m, 1000)
	if !ok {
		t.Fatal("expected a value")
	}
	if !approx(r, math.Exp(-3), 1e-12) {
		t.Errorf("R(1000) = %v, want %v", r, math.Exp(-3))
	}
	if math.Abs(r-0.0498) > 1e-4 {
		t.Errorf("R(1000) = %v, want ≈0.0498", r)
	}

	mtbf := MTBF(m, quad.ExpSinh{})
	if !approx(mtbf, 1/0.003, 1e-6) {
		t.Errorf("MTBF = %v, want %v", mtbf, 1/0.003)
	}
}

func TestEvaluate_ParallelScenario(t *testing.T) {
	m := Series(Parallel(Series(Leaf(0.001)), Series(Leaf(0.001))))
	r, ok := Evaluate(m, 100)
	if !ok {
		t.Fatal("expected a value")
	}
	q := 1 - math.Exp(-0.1)
	if want := 1 - q*q; !approx(r, want, 1e-12) {
		t.Errorf("R(100) = %v, want %v", r, want)
	}

	// 1/λ1 + 1/λ2 - 1/(λ1+λ2)
	if mtbf := MTBF(m, quad.ExpSinh{}); !approx(mtbf, 1500, 1e-6) {
		t.Errorf("MTBF = %v, want 1500", mtbf)
	}
}

func TestEvaluate_SkipsUnvaluedChildren(t *testing.T) {
	empty := Series()
	cases := []struct {
		name   string
		model  *Model
		want   float64
		wantOK bool
	}{
		{"nil model", nil, 0, false},
		{"empty series", empty, 0, false},
		{"empty parallel", Parallel(), 0, false},
		{"series skips empty child", Series(empty, Leaf(0.1)), math.Exp(-0.1), true},
		{"parallel skips empty child", Parallel(empty, Leaf(0.1)), math.Exp(-0.1), true},
		{"all children empty", Series(empty, Parallel(empty)), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Evaluate(tc.model, 1)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && !approx(got, tc.want, 1e-12) {
				t.Errorf("R = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMTBF_Bounds(t *testing.T) {
	if got := MTBF(Series(Leaf(0), Parallel(Leaf(0))), quad.ExpSinh{}); !math.IsInf(got, 1) {
		t.Errorf("non-decaying model MTBF = %v, want +Inf", got)
	}
	if got := MTBF(Series(Leaf(math.Inf(1)), Leaf(0.1)), quad.ExpSinh{}); got != 0 {
		t.Errorf("failed model MTBF = %v, want 0", got)
	}
}

func TestMTBF_DeepSeriesStaysFinite(t *testing.T) {
	leaves := make([]*Model, 500)
	for i := range leaves {
		leaves[i] = Leaf(1e-4)
	}
	got := MTBF(Series(leaves...), quad.ExpSinh{})
	if !approx(got, 1/(500*1e-4), 1e-6) {
		t.Errorf("MTBF = %v, want %v", got, 1/(500*1e-4))
	}
}

func TestModel_String(t *testing.T) {
	m := Series(Leaf(0.5), Parallel(Leaf(1), Series(Leaf(2))))
	if got, want := m.String(), "S(0.5, P(1, S(2)))"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := m.LeafCount(); got != 3 {
		t.Errorf("LeafCount() = %d, want 3", got)
	}
}

func TestEvaluate_Properties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	rates := gen.SliceOfN(6, gen.Float64Range(0, 0.01))
	times := gen.Float64Range(0, 5000)

	properties.Property("series of leaves is exp(-Σλ·t)", prop.ForAll(
		func(lambdas []float64, t float64) bool {
			leaves := make([]*Model, len(lambdas))
			sum := 0.0
			for i, l := range lambdas {
				leaves[i] = Leaf(l)
				sum += l
			}
			r, ok := Evaluate(Series(leaves...), t)
			return ok && approx(r, math.Exp(-sum*t), 1e-9)
		},
		rates, times,
	))

	properties.Property("two-branch parallel", prop.ForAll(
		func(l1, l2, t float64) bool {
			r, ok := Evaluate(Parallel(Leaf(l1), Leaf(l2)), t)
			want := 1 - (1-math.Exp(-l1*t))*(1-math.Exp(-l2*t))
			return ok && approx(r, want, 1e-12)
		},
		gen.Float64Range(0, 0.01), gen.Float64Range(0, 0.01), times,
	))

	properties.Property("evaluation is deterministic", prop.ForAll(
		func(lambdas []float64, t float64) bool {
			m := Series(Leaf(lambdas[0]), Parallel(Leaf(lambdas[1]), Series(Leaf(lambdas[2]), Leaf(lambdas[3]))))
			a, _ := Evaluate(m, t)
			b, _ := Evaluate(m, t)
			return a == b
		},
		rates, times,
	))

	properties.Property("reliability stays within [0, 1]", prop.ForAll(
		func(lambdas []float64, t float64) bool {
			m := Parallel(Series(Leaf(lambdas[0]), Leaf(lambdas[1])), Leaf(lambdas[2]))
			r, ok := Evaluate(m, t)
			return ok && r >= 0 && r <= 1
		},
		rates, times,
	))

	properties.TestingRun(t)
}
