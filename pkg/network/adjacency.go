package network

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"
)

// Edge identifies an unordered node pair by index.
type Edge struct {
	I int `json:"i"`
	J int `json:"j"`
}

// AdjacencyMatrix is a symmetric binary matrix with a zero diagonal.
// It is built once by the loader (or a test fixture) and read-only afterwards.
type AdjacencyMatrix struct {
	m *mat.SymDense
	n int
}

// NewAdjacencyMatrix builds an adjacency matrix from an edge list.
// Self-loops and out-of-range indices are rejected.
func NewAdjacencyMatrix(n int, edges []Edge) (*AdjacencyMatrix, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative node count %d", n)
	}
	m := mat.NewSymDense(maxInt(n, 1), nil)
	for _, e := range edges {
		if e.I < 0 || e.I >= n || e.J < 0 || e.J >= n {
			return nil, fmt.Errorf("edge (%d,%d) out of range for %d nodes", e.I, e.J, n)
		}
		if e.I == e.J {
			return nil, fmt.Errorf("self-loop on node %d", e.I)
		}
		m.SetSym(e.I, e.J, 1)
	}
	return &AdjacencyMatrix{m: m, n: n}, nil
}

// FromSymDense wraps an existing symmetric matrix after validating it.
// The matrix is copied, callers keep ownership of theirs.
func FromSymDense(m *mat.SymDense) (*AdjacencyMatrix, error) {
	n := m.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	cp := mat.NewSymDense(n, nil)
	cp.CopySym(m)
	a := &AdjacencyMatrix{m: cp, n: n}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// N returns the number of nodes.
func (a *AdjacencyMatrix) N() int { return a.n }

// At returns the 0/1 entry for the pair (i, j).
func (a *AdjacencyMatrix) At(i, j int) float64 { return a.m.At(i, j) }

// HasEdge reports whether nodes i and j are connected.
func (a *AdjacencyMatrix) HasEdge(i, j int) bool { return a.m.At(i, j) == 1 }

// EdgeCount returns the number of unordered connected pairs.
func (a *AdjacencyMatrix) EdgeCount() int {
	count := 0
	for i := 0; i < a.n; i++ {
		for j := i + 1; j < a.n; j++ {
			if a.m.At(i, j) == 1 {
				count++
			}
		}
	}
	return count
}

// Density returns the fraction of connected pairs among all unordered pairs.
// ok is false when the graph has fewer than two nodes and density is undefined.
func (a *AdjacencyMatrix) Density() (density float64, ok bool) {
	pairs := a.n * (a.n - 1) / 2
	if pairs == 0 {
		return 0, false
	}
	return float64(a.EdgeCount()) / float64(pairs), true
}

// DegreeSequence returns the degree of every node, in node order.
func (a *AdjacencyMatrix) DegreeSequence() []int {
	degrees := make([]int, a.n)
	for i := 0; i < a.n; i++ {
		for j := 0; j < a.n; j++ {
			if i != j && a.m.At(i, j) == 1 {
				degrees[i]++
			}
		}
	}
	return degrees
}

// Graph exports the matrix as a gonum undirected graph, node IDs matching
// matrix indices.
func (a *AdjacencyMatrix) Graph() *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for i := 0; i < a.n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < a.n; i++ {
		for j := i + 1; j < a.n; j++ {
			if a.m.At(i, j) == 1 {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}
	return g
}

// Validate checks the structural invariants: zero diagonal, binary entries.
// Symmetry holds by construction of the underlying SymDense.
func (a *AdjacencyMatrix) Validate() error {
	for i := 0; i < a.n; i++ {
		if a.m.At(i, i) != 0 {
			return fmt.Errorf("nonzero diagonal at node %d", i)
		}
		for j := i + 1; j < a.n; j++ {
			v := a.m.At(i, j)
			if v != 0 && v != 1 {
				return fmt.Errorf("non-binary entry %v at (%d,%d)", v, i, j)
			}
			if math.IsNaN(v) {
				return fmt.Errorf("NaN entry at (%d,%d)", i, j)
			}
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
