package eigenmodel

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// hmcParams are the leapfrog integrator settings.
type hmcParams struct {
	stepSize       float64
	leapfrogSteps  int
	maxEnergyError float64
}

// gradient returns the gradient of the log posterior in (mu, U) at s, with
// the shrinkage chain held fixed. The gamma prior on delta does not depend
// on (mu, U) and is omitted.
func (m *Model) gradient(s State) (dMu float64, dU *mat.Dense) {
	eta := m.LinearPredictor(s)

	// Pair scores g_ij = d logLik / d eta_ij, zero on the diagonal.
	g := mat.NewSymDense(m.n, nil)
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			e := eta.At(i, j)
			p := clipProb(distuv.UnitNormal.CDF(e))
			y := m.adj.At(i, j)
			score := distuv.UnitNormal.Prob(e) * (y - p) / (p * (1 - p))
			g.SetSym(i, j, score)
			dMu += score
		}
	}
	dMu -= (s.Mu - m.interceptMean) / (m.interceptSD * m.interceptSD)

	// d logLik / d U = G U, with G symmetric and zero-diagonal, then the
	// normal shrinkage prior pulls each dimension toward zero.
	dU = mat.NewDense(m.n, m.h, nil)
	dU.Mul(g, s.U)
	tau := m.Tau(s.Delta)
	for i := 0; i < m.n; i++ {
		for h := 0; h < m.h; h++ {
			dU.Set(i, h, dU.At(i, h)-tau[h]*s.U.At(i, h))
		}
	}
	return dMu, dU
}

// potential is the negative log posterior in (mu, U) given delta.
func (m *Model) potential(s State) float64 {
	return -(m.LogLikelihood(s) + m.muPriorLogProb(s.Mu) + m.embeddingPriorLogProb(s))
}

func (m *Model) muPriorLogProb(mu float64) float64 {
	return distuv.Normal{Mu: m.interceptMean, Sigma: m.interceptSD}.LogProb(mu)
}

func (m *Model) embeddingPriorLogProb(s State) float64 {
	tau := m.Tau(s.Delta)
	lp := 0.0
	for h := 0; h < m.h; h++ {
		dim := distuv.Normal{Mu: 0, Sigma: 1 / math.Sqrt(tau[h])}
		for i := 0; i < m.n; i++ {
			lp += dim.LogProb(s.U.At(i, h))
		}
	}
	return lp
}

// hmcStep advances (mu, U) by one Hamiltonian trajectory with a Metropolis
// correction. A rejected or divergent trajectory leaves the state unchanged.
func (m *Model) hmcStep(s State, rng *rand.Rand, p hmcParams) (next State, accepted, divergent bool) {
	pMu := rng.NormFloat64()
	pU := mat.NewDense(m.n, m.h, nil)
	for i := 0; i < m.n; i++ {
		for h := 0; h < m.h; h++ {
			pU.Set(i, h, rng.NormFloat64())
		}
	}

	startEnergy := m.potential(s) + kinetic(pMu, pU)

	prop := s.Clone()
	gMu, gU := m.gradient(prop)

	eps := p.stepSize
	for step := 0; step < p.leapfrogSteps; step++ {
		// Half step for momentum, full step for position, half step again.
		pMu += 0.5 * eps * gMu
		addScaled(pU, 0.5*eps, gU)

		prop.Mu += eps * pMu
		addScaled(prop.U, eps, pU)

		gMu, gU = m.gradient(prop)
		pMu += 0.5 * eps * gMu
		addScaled(pU, 0.5*eps, gU)

		if !stateFinite(prop) {
			return s, false, true
		}
	}

	endEnergy := m.potential(prop) + kinetic(pMu, pU)
	if math.IsNaN(endEnergy) || math.IsInf(endEnergy, 0) || endEnergy-startEnergy > p.maxEnergyError {
		return s, false, true
	}
	if math.Log(rng.Float64()) < startEnergy-endEnergy {
		return prop, true, false
	}
	return s, false, false
}

func kinetic(pMu float64, pU *mat.Dense) float64 {
	k := 0.5 * pMu * pMu
	r, c := pU.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := pU.At(i, j)
			k += 0.5 * v * v
		}
	}
	return k
}

func addScaled(dst *mat.Dense, alpha float64, src *mat.Dense) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)+alpha*src.At(i, j))
		}
	}
}

func stateFinite(s State) bool {
	if math.IsNaN(s.Mu) || math.IsInf(s.Mu, 0) {
		return false
	}
	r, c := s.U.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := s.U.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
