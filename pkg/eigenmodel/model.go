package eigenmodel

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tkuessner/chartnet/pkg/network"
)

// probEps bounds probabilities away from 0 and 1 so the Bernoulli
// log-likelihood stays finite for extreme linear predictors.
const probEps = 1e-10

// Model is the latent factor network model: each off-diagonal pair (i,j)
// with i<j is Bernoulli with probability Phi(mu + u_i . u_j), where the
// latent vectors carry a multiplicative gamma shrinkage prior across
// dimensions.
type Model struct {
	adj *network.AdjacencyMatrix
	n   int
	h   int

	a1            float64
	a2            float64
	interceptMean float64
	interceptSD   float64
}

// State holds one value of all latent quantities.
type State struct {
	Mu    float64    // intercept on the probit scale
	Delta []float64  // shrinkage chain, length H, all positive
	U     *mat.Dense // N x H latent embedding
}

// Clone deep-copies the state.
func (s State) Clone() State {
	delta := make([]float64, len(s.Delta))
	copy(delta, s.Delta)
	return State{Mu: s.Mu, Delta: delta, U: mat.DenseCopyOf(s.U)}
}

// NewModel validates hyperparameters and binds the model to an observed
// adjacency matrix.
func NewModel(adj *network.AdjacencyMatrix, config *Config) (*Model, error) {
	if err := adj.Validate(); err != nil {
		return nil, fmt.Errorf("invalid adjacency matrix: %w", err)
	}
	if adj.N() < 2 {
		return nil, fmt.Errorf("need at least 2 nodes, got %d", adj.N())
	}
	h := config.Dimensions()
	if h < 1 {
		return nil, fmt.Errorf("latent dimension count must be >= 1, got %d", h)
	}
	a1, a2 := config.ShrinkageA1(), config.ShrinkageA2()
	if a1 <= 0 || a2 <= 0 {
		return nil, fmt.Errorf("shrinkage shapes must be positive, got a1=%v a2=%v", a1, a2)
	}
	sd := config.InterceptSD()
	if sd <= 0 {
		return nil, fmt.Errorf("intercept prior sd must be positive, got %v", sd)
	}
	return &Model{
		adj:           adj,
		n:             adj.N(),
		h:             h,
		a1:            a1,
		a2:            a2,
		interceptMean: config.InterceptMean(),
		interceptSD:   sd,
	}, nil
}

// N returns the number of nodes.
func (m *Model) N() int { return m.n }

// H returns the latent dimension count.
func (m *Model) H() int { return m.h }

// Tau returns the cumulative products of the shrinkage chain. Tau[h] is the
// prior precision of latent dimension h.
func (m *Model) Tau(delta []float64) []float64 {
	tau := make([]float64, len(delta))
	prod := 1.0
	for h, d := range delta {
		prod *= d
		tau[h] = prod
	}
	return tau
}

// LinearPredictor returns mu + U U^T. Only the upper triangle (diagonal
// included) is computed, the lower follows from symmetric storage. The
// diagonal never enters the likelihood.
func (m *Model) LinearPredictor(s State) *mat.SymDense {
	eta := mat.NewSymDense(m.n, nil)
	for i := 0; i < m.n; i++ {
		ui := s.U.RawRowView(i)
		for j := i; j < m.n; j++ {
			uj := s.U.RawRowView(j)
			dot := 0.0
			for h := 0; h < m.h; h++ {
				dot += ui[h] * uj[h]
			}
			eta.SetSym(i, j, s.Mu+dot)
		}
	}
	return eta
}

// ProbMatrix applies the probit link entrywise to the linear predictor.
// Every off-diagonal entry is clipped into [probEps, 1-probEps]; the
// diagonal stays zero.
func (m *Model) ProbMatrix(s State) *mat.SymDense {
	eta := m.LinearPredictor(s)
	p := mat.NewSymDense(m.n, nil)
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			p.SetSym(i, j, clipProb(distuv.UnitNormal.CDF(eta.At(i, j))))
		}
	}
	return p
}

// LogLikelihood is the Bernoulli log-likelihood of the observed adjacency
// matrix, aggregated over the strict upper triangle only.
func (m *Model) LogLikelihood(s State) float64 {
	p := m.ProbMatrix(s)
	ll := 0.0
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			pij := p.At(i, j)
			if m.adj.HasEdge(i, j) {
				ll += math.Log(pij)
			} else {
				ll += math.Log(1 - pij)
			}
		}
	}
	return ll
}

// LogPrior is the joint log prior density of (mu, delta, U).
func (m *Model) LogPrior(s State) float64 {
	lp := distuv.Normal{Mu: m.interceptMean, Sigma: m.interceptSD}.LogProb(s.Mu)
	for h, d := range s.Delta {
		shape := m.a2
		if h == 0 {
			shape = m.a1
		}
		lp += distuv.Gamma{Alpha: shape, Beta: 1}.LogProb(d)
	}
	tau := m.Tau(s.Delta)
	for h := 0; h < m.h; h++ {
		sigma := 1 / math.Sqrt(tau[h])
		dim := distuv.Normal{Mu: 0, Sigma: sigma}
		for i := 0; i < m.n; i++ {
			lp += dim.LogProb(s.U.At(i, h))
		}
	}
	return lp
}

// LogPosterior is the unnormalized joint log density.
func (m *Model) LogPosterior(s State) float64 {
	return m.LogLikelihood(s) + m.LogPrior(s)
}

// InitState builds a starting state: intercept at its prior mean, shrinkage
// factors at their prior means, latent vectors as small normal draws.
func (m *Model) InitState(rng *rand.Rand) State {
	delta := make([]float64, m.h)
	for h := range delta {
		if h == 0 {
			delta[h] = m.a1
		} else {
			delta[h] = m.a2
		}
	}
	u := mat.NewDense(m.n, m.h, nil)
	for i := 0; i < m.n; i++ {
		for h := 0; h < m.h; h++ {
			u.Set(i, h, 0.1*rng.NormFloat64())
		}
	}
	return State{Mu: m.interceptMean, Delta: delta, U: u}
}

// updateDelta replaces the shrinkage chain with a draw from its conjugate
// conditional given U (multiplicative gamma process update). The chain stays
// strictly positive.
func (m *Model) updateDelta(s *State, rng *rand.Rand) {
	sumsq := make([]float64, m.h)
	for h := 0; h < m.h; h++ {
		for i := 0; i < m.n; i++ {
			v := s.U.At(i, h)
			sumsq[h] += v * v
		}
	}
	nf := float64(m.n)
	for h := 0; h < m.h; h++ {
		shape := m.a2
		if h == 0 {
			shape = m.a1
		}
		shape += 0.5 * nf * float64(m.h-h)

		rate := 1.0
		for l := h; l < m.h; l++ {
			// Precision of dimension l with delta[h] factored out.
			prod := 1.0
			for t := 0; t <= l; t++ {
				if t != h {
					prod *= s.Delta[t]
				}
			}
			rate += 0.5 * prod * sumsq[l]
		}
		s.Delta[h] = distuv.Gamma{Alpha: shape, Beta: rate, Src: rng}.Rand()
	}
}

// clipProb bounds a probability into [probEps, 1-probEps] and maps NaN to
// probEps so a degenerate link value never reaches a logarithm.
func clipProb(p float64) float64 {
	if math.IsNaN(p) || p < probEps {
		return probEps
	}
	if p > 1-probEps {
		return 1 - probEps
	}
	return p
}
