package chartdata

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tkuessner/chartnet/pkg/network"
)

const edgeHeader = "region_a,region_b,weight,total_streams_a\n"

func load(t *testing.T, table string, opts Options) (*network.AdjacencyMatrix, *network.NodeSet) {
	t.Helper()
	adj, nodes, err := LoadFrom(strings.NewReader(table), opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	return adj, nodes
}

// Four nodes, six pairs with counts [3,0,5,0,4,0] and threshold 4: only the
// pairs at 5 and 4 become edges.
func TestThresholdScenario(t *testing.T) {
	table := edgeHeader +
		"ar,br,3,100\n" +
		"ar,ca,0,100\n" +
		"ar,cl,5,100\n" +
		"br,ca,0,200\n" +
		"br,cl,4,200\n" +
		"ca,cl,0,300\n"
	adj, nodes, err := LoadFrom(strings.NewReader(table), Options{Threshold: 4}, zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if nodes.Len() != 4 {
		t.Fatalf("got %d nodes, want 4", nodes.Len())
	}
	want := map[[2]string]bool{
		{"ar", "br"}: false,
		{"ar", "ca"}: false,
		{"ar", "cl"}: true,
		{"br", "ca"}: false,
		{"br", "cl"}: true,
		{"ca", "cl"}: false,
	}
	for pair, connected := range want {
		i, _ := nodes.Index(pair[0])
		j, _ := nodes.Index(pair[1])
		if adj.HasEdge(i, j) != connected {
			t.Errorf("edge %v = %v, want %v", pair, adj.HasEdge(i, j), connected)
		}
	}
	if err := adj.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestIdempotence(t *testing.T) {
	table := edgeHeader + "ar,br,5,100\nbr,ca,2,200\nar,ca,7,100\n"
	opts := Options{Threshold: 4}

	first, _ := load(t, table, opts)
	second, _ := load(t, table, opts)

	if first.N() != second.N() {
		t.Fatalf("node counts differ: %d vs %d", first.N(), second.N())
	}
	for i := 0; i < first.N(); i++ {
		for j := 0; j < first.N(); j++ {
			if first.At(i, j) != second.At(i, j) {
				t.Errorf("matrices differ at (%d,%d)", i, j)
			}
		}
	}
}

func TestDuplicateCodeCanonicalized(t *testing.T) {
	// "uk" and "gb" are the same country; their weights must merge.
	table := edgeHeader + "uk,de,2,100\ngb,de,2,100\n"
	adj, nodes := load(t, table, Options{Threshold: 4})

	if _, ok := nodes.Index("uk"); ok {
		t.Error("uk should have been folded onto gb")
	}
	i, ok := nodes.Index("gb")
	if !ok {
		t.Fatal("gb missing from node set")
	}
	j, _ := nodes.Index("de")
	if !adj.HasEdge(i, j) {
		t.Error("merged uk+gb weight should cross the threshold")
	}
}

func TestAggregateDropped(t *testing.T) {
	table := edgeHeader + "global,de,100,9999\nde,fr,10,100\nfr,global,100,50\n"
	_, nodes := load(t, table, Options{Threshold: 4})

	if _, ok := nodes.Index("global"); ok {
		t.Error("aggregate region must never become a node")
	}
	if nodes.Len() != 2 {
		t.Errorf("got %d nodes, want 2", nodes.Len())
	}
}

func TestUnknownCodePolicy(t *testing.T) {
	table := edgeHeader + "de,fr,10,100\nzz,fr,10,100\n"

	// Default: drop with a warning.
	_, nodes := load(t, table, Options{Threshold: 4})
	if _, ok := nodes.Index("zz"); ok {
		t.Error("unknown code should have been dropped")
	}

	// Strict: fail the load.
	if _, _, err := LoadFrom(strings.NewReader(table), Options{Threshold: 4, Strict: true}, zerolog.Nop()); err == nil {
		t.Error("strict mode should fail on unknown codes")
	}
}

func TestCovariateImputationAndScaling(t *testing.T) {
	// "cl" only ever appears as a destination: its covariate is imputed as
	// the mean of the observed ones, then everything is scaled by the
	// sample standard deviation.
	table := edgeHeader + "ar,cl,10,100\nbr,cl,10,300\n"
	_, nodes := load(t, table, Options{Threshold: 4})

	get := func(code string) float64 {
		i, ok := nodes.Index(code)
		if !ok {
			t.Fatalf("node %s missing", code)
		}
		return nodes.Node(i).Covariate
	}

	ar, br, cl := get("ar"), get("br"), get("cl")
	if mean := (ar + br) / 2; !closeTo(cl, mean) {
		t.Errorf("imputed covariate %v, want mean %v", cl, mean)
	}
	// Raw values 100, 300, 200 have sample sd 100, so scaled values are
	// 1, 3 and 2.
	if !closeTo(ar, 1) || !closeTo(br, 3) || !closeTo(cl, 2) {
		t.Errorf("scaled covariates = %v, %v, %v, want 1, 3, 2", ar, br, cl)
	}
}

func TestLoadGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.csv.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(edgeHeader + "ar,br,5,100\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	adj, nodes, err := Load(path, Options{Threshold: 4}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if nodes.Len() != 2 || adj.EdgeCount() != 1 {
		t.Errorf("got %d nodes and %d edges, want 2 and 1", nodes.Len(), adj.EdgeCount())
	}
}

func TestEmptyTable(t *testing.T) {
	if _, _, err := LoadFrom(strings.NewReader(edgeHeader), Options{Threshold: 4}, zerolog.Nop()); err == nil {
		t.Error("expected error for a table with no usable records")
	}
}

func TestLoadCountryTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countries.csv")
	content := "code,iso3,name,continent\nde,DEU,Germany,Europe\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadCountryTable(path)
	if err != nil {
		t.Fatalf("LoadCountryTable: %v", err)
	}
	if info, ok := table["de"]; !ok || info.ISO3 != "DEU" {
		t.Errorf("table[de] = %+v, %v", info, ok)
	}
}

func closeTo(a, b float64) bool {
	diff := a - b
	return diff < 1e-9 && diff > -1e-9
}
