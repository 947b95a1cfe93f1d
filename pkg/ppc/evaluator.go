// Package ppc evaluates fitted latent factor models against the observed
// network: posterior mean reconstruction, ROC/AUC, and posterior predictive
// density checks.
package ppc

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tkuessner/chartnet/pkg/eigenmodel"
	"github.com/tkuessner/chartnet/pkg/network"
)

// PosteriorMeanMatrix returns the elementwise mean of the stored probability
// matrices over all retained draws. The denominator is the full draw count;
// zero-filled entries are averaged as-is, never dropped.
func PosteriorMeanMatrix(draws []eigenmodel.Draw) (*mat.SymDense, error) {
	if len(draws) == 0 {
		return nil, fmt.Errorf("no draws to average")
	}
	n := draws[0].P.SymmetricDim()
	mean := mat.NewSymDense(n, nil)
	acc := mean.RawSymmetric().Data
	for _, d := range draws {
		if d.P.SymmetricDim() != n {
			return nil, fmt.Errorf("inconsistent draw dimensions: %d vs %d", d.P.SymmetricDim(), n)
		}
		floats.Add(acc, d.P.RawSymmetric().Data)
	}
	floats.Scale(1/float64(len(draws)), acc)
	return mean, nil
}

// AUC computes the area under the ROC curve of the upper-triangular
// predicted probabilities against the observed adjacency entries, via the
// rank-based Mann-Whitney statistic with midranks for ties. ok is false when
// the outcome vector has a single class and AUC is undefined.
func AUC(probs *mat.SymDense, adj *network.AdjacencyMatrix) (auc float64, ok bool) {
	n := adj.N()
	if probs.SymmetricDim() != n {
		return 0, false
	}

	type scored struct {
		p float64
		y bool
	}
	var pairs []scored
	positives, negatives := 0, 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			y := adj.HasEdge(i, j)
			if y {
				positives++
			} else {
				negatives++
			}
			pairs = append(pairs, scored{p: probs.At(i, j), y: y})
		}
	}
	if positives == 0 || negatives == 0 {
		return 0, false
	}

	sort.Slice(pairs, func(a, b int) bool { return pairs[a].p < pairs[b].p })

	// Midranks over tied scores, then the rank-sum of the positives.
	rankSum := 0.0
	for lo := 0; lo < len(pairs); {
		hi := lo
		for hi < len(pairs) && pairs[hi].p == pairs[lo].p {
			hi++
		}
		midrank := float64(lo+hi+1) / 2 // ranks are 1-based
		for k := lo; k < hi; k++ {
			if pairs[k].y {
				rankSum += midrank
			}
		}
		lo = hi
	}

	np, nn := float64(positives), float64(negatives)
	return (rankSum - np*(np+1)/2) / (np * nn), true
}

// DensityCheckResult holds the posterior predictive distribution of network
// density and degree sequences next to the observed values.
type DensityCheckResult struct {
	ObservedDensity float64   `json:"observed_density"`
	ObservedDegrees []int     `json:"observed_degrees"`
	Densities       []float64 `json:"densities"`
	DegreeSequences [][]int   `json:"degree_sequences"`
}

// DensitySummary locates the observed density within the posterior
// predictive distribution.
type DensitySummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Q05    float64 `json:"q05"`
	Q95    float64 `json:"q95"`
}

// Summary returns the mean, spread and central 90% interval of the synthetic
// densities.
func (r *DensityCheckResult) Summary() DensitySummary {
	sorted := append([]float64(nil), r.Densities...)
	sort.Float64s(sorted)
	return DensitySummary{
		Mean:   stat.Mean(sorted, nil),
		StdDev: stat.StdDev(sorted, nil),
		Q05:    stat.Quantile(0.05, stat.Empirical, sorted, nil),
		Q95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}

// DensityCheck resamples one synthetic adjacency matrix per retained draw by
// independent Bernoulli draws from that draw's probability matrix
// (symmetrized, zero diagonal) and records its density and degree sequence.
// Each resample depends only on its source draw; the draws themselves are
// never mutated.
func DensityCheck(draws []eigenmodel.Draw, adj *network.AdjacencyMatrix, rng *rand.Rand) (*DensityCheckResult, error) {
	if len(draws) == 0 {
		return nil, fmt.Errorf("no draws to resample")
	}
	density, ok := adj.Density()
	if !ok {
		return nil, fmt.Errorf("observed density undefined for %d nodes", adj.N())
	}

	result := &DensityCheckResult{
		ObservedDensity: density,
		ObservedDegrees: adj.DegreeSequence(),
		Densities:       make([]float64, 0, len(draws)),
		DegreeSequences: make([][]int, 0, len(draws)),
	}
	for _, d := range draws {
		synth, err := resampleAdjacency(d.P, rng)
		if err != nil {
			return nil, err
		}
		synthDensity, _ := synth.Density()
		result.Densities = append(result.Densities, synthDensity)
		result.DegreeSequences = append(result.DegreeSequences, synth.DegreeSequence())
	}
	return result, nil
}

// resampleAdjacency draws a symmetric zero-diagonal binary matrix with
// independent Bernoulli entries over the upper triangle.
func resampleAdjacency(p *mat.SymDense, rng *rand.Rand) (*network.AdjacencyMatrix, error) {
	n := p.SymmetricDim()
	var edges []network.Edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < p.At(i, j) {
				edges = append(edges, network.Edge{I: i, J: j})
			}
		}
	}
	return network.NewAdjacencyMatrix(n, edges)
}
