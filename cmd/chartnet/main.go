package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/tkuessner/chartnet/pkg/chartdata"
	"github.com/tkuessner/chartnet/pkg/eigenmodel"
	"github.com/tkuessner/chartnet/pkg/network"
	"github.com/tkuessner/chartnet/pkg/ppc"
)

func main() {
	dataPath := flag.String("data", "", "edge table CSV (optionally .gz)")
	countryPath := flag.String("countries", "", "country reference table CSV (optional)")
	threshold := flag.Float64("threshold", 26, "minimum co-occurrence count for an edge")
	strict := flag.Bool("strict", false, "fail on unresolvable region codes instead of dropping them")
	configPath := flag.String("config", "", "sampler config file (optional)")
	samplerKind := flag.String("sampler", "", "override sampler kind (hmc or slice)")
	chains := flag.Int("chains", 0, "override number of chains")
	iterations := flag.Int("iterations", 0, "override iterations per chain")
	outDir := flag.String("out", "", "directory for CSV outputs (optional)")
	flag.Parse()

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "usage: chartnet -data <edge_table.csv[.gz]> [flags]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	config := eigenmodel.NewConfig()
	if *configPath != "" {
		if err := config.LoadFromFile(*configPath); err != nil {
			fatal(fmt.Errorf("load config: %w", err))
		}
	}
	if *samplerKind != "" {
		config.Set("sampler.kind", *samplerKind)
	}
	if *chains > 0 {
		config.Set("sampler.chains", *chains)
	}
	if *iterations > 0 {
		config.Set("sampler.iterations", *iterations)
	}
	logger := config.CreateLogger()

	opts := chartdata.Options{Threshold: *threshold, Strict: *strict}
	if *countryPath != "" {
		table, err := chartdata.LoadCountryTable(*countryPath)
		if err != nil {
			fatal(err)
		}
		opts.Countries = table
	}

	adj, nodes, err := chartdata.Load(*dataPath, opts, logger)
	if err != nil {
		fatal(err)
	}
	if density, ok := adj.Density(); ok {
		logger.Info().Float64("density", density).Msg("Observed network density")
	}

	result, err := eigenmodel.Run(adj, config, context.Background())
	if err != nil {
		fatal(err)
	}
	draws := result.Draws()

	meanP, err := ppc.PosteriorMeanMatrix(draws)
	if err != nil {
		fatal(err)
	}
	if auc, ok := ppc.AUC(meanP, adj); ok {
		logger.Info().Float64("auc", auc).Msg("In-sample ROC AUC of posterior mean probabilities")
	} else {
		logger.Warn().Msg("AUC undefined: observed network has a single outcome class")
	}

	rng := rand.New(rand.NewSource(uint64(config.RandomSeed())))
	check, err := ppc.DensityCheck(draws, adj, rng)
	if err != nil {
		fatal(err)
	}
	summary := check.Summary()
	logger.Info().
		Float64("observed_density", check.ObservedDensity).
		Float64("predictive_mean", summary.Mean).
		Float64("predictive_q05", summary.Q05).
		Float64("predictive_q95", summary.Q95).
		Int("resamples", len(check.Densities)).
		Msg("Posterior predictive density check complete")

	if *outDir != "" {
		if err := writeOutputs(*outDir, nodes, meanP, check); err != nil {
			fatal(err)
		}
		logger.Info().Str("dir", *outDir).Msg("Wrote output artifacts")
	}
}

func writeOutputs(dir string, nodes *network.NodeSet, meanP *mat.SymDense, check *ppc.DensityCheckResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeNodeTable(filepath.Join(dir, "nodes.csv"), nodes); err != nil {
		return err
	}
	if err := writeMatrix(filepath.Join(dir, "posterior_mean.csv"), nodes, meanP); err != nil {
		return err
	}
	return writeDensities(filepath.Join(dir, "ppc_density.csv"), check)
}

func writeNodeTable(path string, nodes *network.NodeSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"code", "iso3", "name", "continent", "covariate"}); err != nil {
		return err
	}
	for i := 0; i < nodes.Len(); i++ {
		node := nodes.Node(i)
		rec := []string{node.Code, node.ISO3, node.Name, node.Continent,
			strconv.FormatFloat(node.Covariate, 'g', -1, 64)}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeMatrix(path string, nodes *network.NodeSet, m *mat.SymDense) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(append([]string{""}, nodes.Codes()...)); err != nil {
		return err
	}
	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		rec := make([]string, n+1)
		rec[0] = nodes.Node(i).Code
		for j := 0; j < n; j++ {
			rec[j+1] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeDensities(path string, check *ppc.DensityCheckResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"draw", "density", "observed_density"}); err != nil {
		return err
	}
	obs := strconv.FormatFloat(check.ObservedDensity, 'g', -1, 64)
	for i, d := range check.Densities {
		rec := []string{strconv.Itoa(i), strconv.FormatFloat(d, 'g', -1, 64), obs}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "chartnet:", err)
	os.Exit(1)
}
