package ppc

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/tkuessner/chartnet/pkg/eigenmodel"
	"github.com/tkuessner/chartnet/pkg/network"
)

func symFromUpper(n int, entries map[[2]int]float64) *mat.SymDense {
	m := mat.NewSymDense(n, nil)
	for idx, v := range entries {
		m.SetSym(idx[0], idx[1], v)
	}
	return m
}

func drawWithP(p *mat.SymDense) eigenmodel.Draw {
	return eigenmodel.Draw{P: p}
}

func mustAdjacency(t *testing.T, n int, edges []network.Edge) *network.AdjacencyMatrix {
	t.Helper()
	adj, err := network.NewAdjacencyMatrix(n, edges)
	if err != nil {
		t.Fatalf("adjacency fixture: %v", err)
	}
	return adj
}

// A one-draw collection's posterior mean is that draw's matrix exactly.
func TestPosteriorMeanSingleDraw(t *testing.T) {
	p := symFromUpper(3, map[[2]int]float64{{0, 1}: 0.25, {0, 2}: 0.75, {1, 2}: 0.5})
	mean, err := PosteriorMeanMatrix([]eigenmodel.Draw{drawWithP(p)})
	if err != nil {
		t.Fatalf("PosteriorMeanMatrix: %v", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if mean.At(i, j) != p.At(i, j) {
				t.Errorf("mean(%d,%d) = %v, want %v", i, j, mean.At(i, j), p.At(i, j))
			}
		}
	}
}

func TestPosteriorMeanAverages(t *testing.T) {
	a := symFromUpper(2, map[[2]int]float64{{0, 1}: 0.2})
	b := symFromUpper(2, map[[2]int]float64{{0, 1}: 0.6})
	mean, err := PosteriorMeanMatrix([]eigenmodel.Draw{drawWithP(a), drawWithP(b)})
	if err != nil {
		t.Fatalf("PosteriorMeanMatrix: %v", err)
	}
	if got := mean.At(0, 1); math.Abs(got-0.4) > 1e-15 {
		t.Errorf("mean(0,1) = %v, want 0.4", got)
	}
}

func TestPosteriorMeanErrors(t *testing.T) {
	if _, err := PosteriorMeanMatrix(nil); err == nil {
		t.Error("expected error for empty draw collection")
	}
	a := symFromUpper(2, nil)
	b := symFromUpper(3, nil)
	if _, err := PosteriorMeanMatrix([]eigenmodel.Draw{drawWithP(a), drawWithP(b)}); err == nil {
		t.Error("expected error for inconsistent dimensions")
	}
}

func TestAUCPerfectRanking(t *testing.T) {
	adj := mustAdjacency(t, 3, []network.Edge{{I: 0, J: 1}})
	probs := symFromUpper(3, map[[2]int]float64{{0, 1}: 0.9, {0, 2}: 0.2, {1, 2}: 0.1})

	auc, ok := AUC(probs, adj)
	if !ok {
		t.Fatal("AUC should be defined")
	}
	if auc != 1 {
		t.Errorf("AUC = %v, want 1", auc)
	}

	// Reversed ranking.
	bad := symFromUpper(3, map[[2]int]float64{{0, 1}: 0.1, {0, 2}: 0.8, {1, 2}: 0.9})
	auc, ok = AUC(bad, adj)
	if !ok || auc != 0 {
		t.Errorf("AUC = %v,%v, want 0,true", auc, ok)
	}
}

func TestAUCTiesUseMidranks(t *testing.T) {
	adj := mustAdjacency(t, 3, []network.Edge{{I: 0, J: 1}})
	flat := symFromUpper(3, map[[2]int]float64{{0, 1}: 0.5, {0, 2}: 0.5, {1, 2}: 0.5})

	auc, ok := AUC(flat, adj)
	if !ok {
		t.Fatal("AUC should be defined")
	}
	if auc != 0.5 {
		t.Errorf("AUC with constant scores = %v, want 0.5", auc)
	}
}

func TestAUCSingleClassUndefined(t *testing.T) {
	probs := symFromUpper(3, map[[2]int]float64{{0, 1}: 0.5, {0, 2}: 0.5, {1, 2}: 0.5})

	empty := mustAdjacency(t, 3, nil)
	if _, ok := AUC(probs, empty); ok {
		t.Error("AUC must be undefined for an edgeless network")
	}

	complete := mustAdjacency(t, 3, []network.Edge{{I: 0, J: 1}, {I: 0, J: 2}, {I: 1, J: 2}})
	if _, ok := AUC(probs, complete); ok {
		t.Error("AUC must be undefined for a complete network")
	}
}

func TestDensityCheckExtremes(t *testing.T) {
	adj := mustAdjacency(t, 4, []network.Edge{{I: 0, J: 1}})
	rng := rand.New(rand.NewSource(1))

	ones := symFromUpper(4, map[[2]int]float64{
		{0, 1}: 0.999999, {0, 2}: 0.999999, {0, 3}: 0.999999,
		{1, 2}: 0.999999, {1, 3}: 0.999999, {2, 3}: 0.999999,
	})
	check, err := DensityCheck([]eigenmodel.Draw{drawWithP(ones)}, adj, rng)
	if err != nil {
		t.Fatalf("DensityCheck: %v", err)
	}
	if want := 1.0 / 6.0; check.ObservedDensity != want {
		t.Errorf("observed density = %v, want %v", check.ObservedDensity, want)
	}
	if len(check.Densities) != 1 || check.Densities[0] != 1 {
		t.Errorf("synthetic densities = %v, want [1]", check.Densities)
	}

	zeros := symFromUpper(4, nil)
	check, err = DensityCheck([]eigenmodel.Draw{drawWithP(zeros)}, adj, rng)
	if err != nil {
		t.Fatalf("DensityCheck: %v", err)
	}
	if check.Densities[0] != 0 {
		t.Errorf("synthetic density = %v, want 0", check.Densities[0])
	}
	if got := check.DegreeSequences[0]; len(got) != 4 {
		t.Errorf("degree sequence length = %d, want 4", len(got))
	}
}

// Resampling must not mutate the source draws.
func TestDensityCheckLeavesDrawsUntouched(t *testing.T) {
	p := symFromUpper(3, map[[2]int]float64{{0, 1}: 0.3, {0, 2}: 0.7, {1, 2}: 0.5})
	before := mat.NewSymDense(3, nil)
	before.CopySym(p)

	adj := mustAdjacency(t, 3, []network.Edge{{I: 0, J: 2}})
	if _, err := DensityCheck([]eigenmodel.Draw{drawWithP(p)}, adj, rand.New(rand.NewSource(2))); err != nil {
		t.Fatalf("DensityCheck: %v", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if p.At(i, j) != before.At(i, j) {
				t.Errorf("draw mutated at (%d,%d)", i, j)
			}
		}
	}
}

func TestDensitySummary(t *testing.T) {
	r := &DensityCheckResult{Densities: []float64{0.2, 0.4, 0.6, 0.8}}
	s := r.Summary()
	if math.Abs(s.Mean-0.5) > 1e-15 {
		t.Errorf("mean = %v, want 0.5", s.Mean)
	}
	if s.Q05 < 0.2 || s.Q05 > 0.4 || s.Q95 < 0.6 || s.Q95 > 0.8 {
		t.Errorf("quantiles = %v, %v outside expected ranges", s.Q05, s.Q95)
	}
	if s.StdDev <= 0 {
		t.Errorf("std dev = %v, want positive", s.StdDev)
	}
}

func TestDensityCheckErrors(t *testing.T) {
	adj := mustAdjacency(t, 3, nil)
	if _, err := DensityCheck(nil, adj, rand.New(rand.NewSource(3))); err == nil {
		t.Error("expected error for empty draw collection")
	}

	single := mustAdjacency(t, 1, nil)
	p := symFromUpper(1, nil)
	if _, err := DensityCheck([]eigenmodel.Draw{drawWithP(p)}, single, rand.New(rand.NewSource(4))); err == nil {
		t.Error("expected error for undefined observed density")
	}
}
