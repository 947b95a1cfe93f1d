package eigenmodel

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// sliceParams are the stepping-out settings of the componentwise sampler.
type sliceParams struct {
	width    float64
	maxSteps int
}

// sliceStep performs one componentwise sweep over mu and every embedding
// entry, then redraws the shrinkage chain from its conjugate conditional.
// No proposal is ever rejected; slice sampling always moves within the
// current slice.
func (m *Model) sliceStep(s State, rng *rand.Rand, p sliceParams) State {
	next := s.Clone()

	next.Mu = sliceUpdate(next.Mu, rng, p, func(mu float64) float64 {
		trial := next
		trial.Mu = mu
		return m.LogLikelihood(trial) + m.muPriorLogProb(mu)
	})

	tau := m.Tau(next.Delta)
	for i := 0; i < m.n; i++ {
		for h := 0; h < m.h; h++ {
			i, h := i, h
			next.U.Set(i, h, sliceUpdate(next.U.At(i, h), rng, p, func(x float64) float64 {
				old := next.U.At(i, h)
				next.U.Set(i, h, x)
				ll := m.nodeLogLikelihood(next, i)
				next.U.Set(i, h, old)
				return ll - 0.5*tau[h]*x*x
			}))
		}
	}

	m.updateDelta(&next, rng)
	return next
}

// nodeLogLikelihood sums the Bernoulli log-likelihood over the pairs that
// involve node i; this is the part of the likelihood that depends on u_i.
func (m *Model) nodeLogLikelihood(s State, i int) float64 {
	ui := s.U.RawRowView(i)
	ll := 0.0
	for j := 0; j < m.n; j++ {
		if j == i {
			continue
		}
		uj := s.U.RawRowView(j)
		dot := 0.0
		for h := 0; h < m.h; h++ {
			dot += ui[h] * uj[h]
		}
		p := clipProb(distuv.UnitNormal.CDF(s.Mu + dot))
		if m.adj.HasEdge(i, j) {
			ll += math.Log(p)
		} else {
			ll += math.Log(1 - p)
		}
	}
	return ll
}

// sliceUpdate draws from a univariate log density by stepping-out and
// shrinkage (Neal 2003).
func sliceUpdate(x0 float64, rng *rand.Rand, p sliceParams, logDensity func(float64) float64) float64 {
	logY := logDensity(x0) + math.Log(rng.Float64())

	// Step out.
	left := x0 - p.width*rng.Float64()
	right := left + p.width
	for k := 0; k < p.maxSteps && logDensity(left) > logY; k++ {
		left -= p.width
	}
	for k := 0; k < p.maxSteps && logDensity(right) > logY; k++ {
		right += p.width
	}

	// Shrink until a point inside the slice is found.
	for {
		x := left + rng.Float64()*(right-left)
		if logDensity(x) > logY {
			return x
		}
		if x < x0 {
			left = x
		} else {
			right = x
		}
		if right-left < 1e-12 {
			return x0
		}
	}
}
