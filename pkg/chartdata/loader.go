package chartdata

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/tkuessner/chartnet/pkg/network"
)

// Options controls how the raw edge table is turned into a network.
type Options struct {
	// Threshold is the minimum co-occurrence count for an edge. Callers
	// derive it as half the number of observation periods in the series.
	Threshold float64
	// Strict fails the load on a region code missing from the country
	// table. When false such records are dropped with a warning.
	Strict bool
	// Countries overrides the reference table. Nil uses the default.
	Countries CountryTable
	// AggregateCode is the reserved code for the all-regions aggregate;
	// records touching it are always dropped. Defaults to "global".
	AggregateCode string
}

type pairKey struct {
	a, b string
}

// Load reads the edge table at path (gzip-compressed when the name ends in
// .gz) and builds the thresholded adjacency matrix and node table.
func Load(path string, opts Options, logger zerolog.Logger) (*network.AdjacencyMatrix, *network.NodeSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open edge table: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip edge table: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return LoadFrom(r, opts, logger)
}

// LoadFrom builds the network from an already-open edge table. The table
// must have a header with columns region_a, region_b, weight and
// total_streams_a.
func LoadFrom(r io.Reader, opts Options, logger zerolog.Logger) (*network.AdjacencyMatrix, *network.NodeSet, error) {
	if opts.Countries == nil {
		opts.Countries = DefaultCountryTable()
	}
	if opts.AggregateCode == "" {
		opts.AggregateCode = "global"
	}

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read edge table header: %w", err)
	}
	col, err := columnIndex(header, "region_a", "region_b", "weight", "total_streams_a")
	if err != nil {
		return nil, nil, fmt.Errorf("edge table: %w", err)
	}

	pairWeights := make(map[pairKey]float64)
	covSum := make(map[string]float64)
	covCount := make(map[string]int)
	seen := make(map[string]bool)
	dropped := 0

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read edge table: %w", err)
		}
		line++

		a := canonicalCode(rec[col["region_a"]])
		b := canonicalCode(rec[col["region_b"]])
		if a == opts.AggregateCode || b == opts.AggregateCode {
			continue
		}
		if a == b {
			continue
		}

		unknown := ""
		if _, ok := opts.Countries[a]; !ok {
			unknown = a
		} else if _, ok := opts.Countries[b]; !ok {
			unknown = b
		}
		if unknown != "" {
			if opts.Strict {
				return nil, nil, fmt.Errorf("line %d: unknown region code %q", line, unknown)
			}
			logger.Warn().Str("code", unknown).Int("line", line).Msg("Dropping record with unknown region code")
			dropped++
			continue
		}

		weight, err := strconv.ParseFloat(strings.TrimSpace(rec[col["weight"]]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: bad weight: %w", line, err)
		}
		streams, err := strconv.ParseFloat(strings.TrimSpace(rec[col["total_streams_a"]]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: bad total_streams_a: %w", line, err)
		}

		// Canonicalization can merge formerly distinct pairs, so weights
		// accumulate.
		pairWeights[orderedPair(a, b)] += weight
		covSum[a] += streams
		covCount[a]++
		seen[a] = true
		seen[b] = true
	}

	if dropped > 0 {
		logger.Warn().Int("records", dropped).Msg("Dropped records with unresolvable region codes")
	}
	if len(seen) == 0 {
		return nil, nil, fmt.Errorf("edge table contains no usable records")
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	covariates, err := buildCovariates(codes, covSum, covCount)
	if err != nil {
		return nil, nil, err
	}

	nodes := make([]network.Node, len(codes))
	for i, code := range codes {
		info := opts.Countries[code]
		nodes[i] = network.Node{
			Code:      code,
			ISO3:      info.ISO3,
			Name:      info.Name,
			Continent: info.Continent,
			Covariate: covariates[i],
		}
	}
	nodeSet, err := network.NewNodeSet(nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("build node set: %w", err)
	}

	var edges []network.Edge
	for pair, weight := range pairWeights {
		if weight < opts.Threshold {
			continue
		}
		i, _ := nodeSet.Index(pair.a)
		j, _ := nodeSet.Index(pair.b)
		edges = append(edges, network.Edge{I: i, J: j})
	}
	adj, err := network.NewAdjacencyMatrix(len(codes), edges)
	if err != nil {
		return nil, nil, fmt.Errorf("build adjacency matrix: %w", err)
	}

	logger.Info().
		Int("nodes", nodeSet.Len()).
		Int("edges", adj.EdgeCount()).
		Float64("threshold", opts.Threshold).
		Msg("Loaded chart network")
	return adj, nodeSet, nil
}

// buildCovariates mean-imputes nodes never observed as a source, then scales
// every covariate by the sample standard deviation.
func buildCovariates(codes []string, covSum map[string]float64, covCount map[string]int) ([]float64, error) {
	observed := make([]float64, 0, len(codes))
	values := make([]float64, len(codes))
	missing := make([]int, 0)
	for i, code := range codes {
		if n := covCount[code]; n > 0 {
			values[i] = covSum[code] / float64(n)
			observed = append(observed, values[i])
		} else {
			missing = append(missing, i)
		}
	}
	if len(observed) == 0 {
		return nil, fmt.Errorf("no node has an observed covariate")
	}
	imputed := stat.Mean(observed, nil)
	for _, i := range missing {
		values[i] = imputed
	}

	sd := stat.StdDev(values, nil)
	if sd == 0 || math.IsNaN(sd) {
		// Constant covariate, nothing to scale.
		return values, nil
	}
	for i := range values {
		values[i] /= sd
	}
	return values, nil
}

// canonicalCode lowercases a region code and folds known duplicate codes
// onto their canonical form. The dataset uses both "uk" and "gb" for the
// United Kingdom.
func canonicalCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "uk" {
		return "gb"
	}
	return code
}

func orderedPair(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}
