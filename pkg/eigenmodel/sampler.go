package eigenmodel

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/tkuessner/chartnet/pkg/network"
)

// Draw is one retained posterior sample. P always equals the probit
// transform of this draw's linear predictor, zero-filled where degenerate.
type Draw struct {
	Mu    float64
	Delta []float64
	U     *mat.Dense
	P     *mat.SymDense
}

// ChainStats describes one chain's execution.
type ChainStats struct {
	ChainID    string `json:"chain_id"`
	Seed       int64  `json:"seed"`
	Accepted   int    `json:"accepted"`
	Rejected   int    `json:"rejected"`
	Divergent  int    `json:"divergent"`
	ZeroFilled int    `json:"zero_filled"`
	RuntimeMS  int64  `json:"runtime_ms"`
}

// Chain holds the retained draws of one independent chain.
type Chain struct {
	Stats ChainStats
	Draws []Draw
}

// Statistics aggregates execution counters across chains.
type Statistics struct {
	TotalDraws      int   `json:"total_draws"`
	TotalDivergent  int   `json:"total_divergent"`
	TotalZeroFilled int   `json:"total_zero_filled"`
	RuntimeMS       int64 `json:"runtime_ms"`
}

// Result is the complete sampler output.
type Result struct {
	Chains     []Chain    `json:"chains"`
	Statistics Statistics `json:"statistics"`
}

// Draws returns all retained draws across chains, chain order preserved.
func (r *Result) Draws() []Draw {
	var all []Draw
	for _, c := range r.Chains {
		all = append(all, c.Draws...)
	}
	return all
}

// Run fits the latent factor model to the observed adjacency matrix.
// Chains run concurrently and share only the read-only inputs; their outputs
// are collected after every chain has finished.
func Run(adj *network.AdjacencyMatrix, config *Config, ctx context.Context) (*Result, error) {
	startTime := time.Now()
	logger := config.CreateLogger()

	model, err := NewModel(adj, config)
	if err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	if err := validateSamplerConfig(config); err != nil {
		return nil, fmt.Errorf("invalid sampler config: %w", err)
	}

	nchains := config.Chains()
	logger.Info().
		Int("nodes", adj.N()).
		Int("dimensions", config.Dimensions()).
		Str("sampler", config.SamplerKind()).
		Int("chains", nchains).
		Int("iterations", config.Iterations()).
		Msg("Starting posterior sampling")

	chains := make([]Chain, nchains)
	errs := make([]error, nchains)
	var wg sync.WaitGroup
	for c := 0; c < nchains; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			seed := config.RandomSeed() + int64(c)
			chains[c], errs[c] = runChain(ctx, model, config, seed, logger)
		}(c)
	}
	wg.Wait()

	for c, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", c, err)
		}
	}

	result := &Result{Chains: chains}
	for _, chain := range chains {
		result.Statistics.TotalDraws += len(chain.Draws)
		result.Statistics.TotalDivergent += chain.Stats.Divergent
		result.Statistics.TotalZeroFilled += chain.Stats.ZeroFilled
	}
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()

	logger.Info().
		Int("draws", result.Statistics.TotalDraws).
		Int("divergent", result.Statistics.TotalDivergent).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Posterior sampling complete")
	return result, nil
}

func validateSamplerConfig(config *Config) error {
	if config.Chains() < 1 {
		return fmt.Errorf("chains must be >= 1, got %d", config.Chains())
	}
	if config.Iterations() < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", config.Iterations())
	}
	if config.Burnin() < 0 || config.Burnin() >= config.Iterations() {
		return fmt.Errorf("burnin must be in [0, iterations), got %d", config.Burnin())
	}
	if config.Thin() < 1 {
		return fmt.Errorf("thin must be >= 1, got %d", config.Thin())
	}
	switch config.SamplerKind() {
	case "hmc", "slice":
	default:
		return fmt.Errorf("unknown sampler kind %q", config.SamplerKind())
	}
	return nil
}

// runChain executes one independent chain with its own random source.
func runChain(ctx context.Context, model *Model, config *Config, seed int64, logger zerolog.Logger) (Chain, error) {
	chainStart := time.Now()
	chain := Chain{Stats: ChainStats{ChainID: uuid.New().String(), Seed: seed}}
	rng := rand.New(rand.NewSource(uint64(seed)))

	hmcCfg := hmcParams{
		stepSize:       config.StepSize(),
		leapfrogSteps:  config.LeapfrogSteps(),
		maxEnergyError: config.MaxEnergyError(),
	}
	sliceCfg := sliceParams{width: config.SliceWidth(), maxSteps: config.SliceMaxSteps()}

	niter, burnin, thin := config.Iterations(), config.Burnin(), config.Thin()
	state := model.InitState(rng)

	for iter := 0; iter < niter; iter++ {
		select {
		case <-ctx.Done():
			return chain, fmt.Errorf("sampling cancelled at iteration %d: %w", iter, ctx.Err())
		default:
		}

		switch config.SamplerKind() {
		case "hmc":
			next, accepted, divergent := model.hmcStep(state, rng, hmcCfg)
			state = next
			if accepted {
				chain.Stats.Accepted++
			} else {
				chain.Stats.Rejected++
			}
			if divergent {
				chain.Stats.Divergent++
			}
			model.updateDelta(&state, rng)
		case "slice":
			state = model.sliceStep(state, rng, sliceCfg)
			chain.Stats.Accepted++
		}

		if iter >= burnin && (iter-burnin)%thin == 0 {
			draw := Draw{
				Mu:    state.Mu,
				Delta: append([]float64(nil), state.Delta...),
				U:     mat.DenseCopyOf(state.U),
				P:     model.ProbMatrix(state),
			}
			chain.Stats.ZeroFilled += zeroFill(draw.P)
			chain.Draws = append(chain.Draws, draw)
		}

		if config.EnableProgress() && config.ProgressInterval() > 0 && (iter+1)%config.ProgressInterval() == 0 {
			logger.Debug().
				Str("chain", chain.Stats.ChainID).
				Int("iteration", iter+1).
				Float64("log_posterior", model.LogPosterior(state)).
				Msg("Sampling progress")
		}
	}

	chain.Stats.RuntimeMS = time.Since(chainStart).Milliseconds()
	return chain, nil
}

// zeroFill replaces NaN entries in a probability matrix with zero and
// returns how many were replaced. Draw denominators stay untouched.
func zeroFill(p *mat.SymDense) int {
	n := p.SymmetricDim()
	filled := 0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if math.IsNaN(p.At(i, j)) {
				p.SetSym(i, j, 0)
				filled++
			}
		}
	}
	return filled
}
