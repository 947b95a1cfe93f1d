package network

import "fmt"

// Node is one country/region in the network. Covariate holds the
// standardized total stream volume produced by the loader.
type Node struct {
	Code      string  `json:"code"`
	ISO3      string  `json:"iso3"`
	Name      string  `json:"name"`
	Continent string  `json:"continent"`
	Covariate float64 `json:"covariate"`
}

// NodeSet is an ordered collection of nodes. Index position ties a node to
// its row/column in the adjacency matrix and to its latent vector.
type NodeSet struct {
	nodes []Node
	index map[string]int
}

// NewNodeSet builds a node set from an ordered slice of nodes.
// Codes must be unique.
func NewNodeSet(nodes []Node) (*NodeSet, error) {
	index := make(map[string]int, len(nodes))
	for i, node := range nodes {
		if _, dup := index[node.Code]; dup {
			return nil, fmt.Errorf("duplicate node code %q", node.Code)
		}
		index[node.Code] = i
	}
	out := make([]Node, len(nodes))
	copy(out, nodes)
	return &NodeSet{nodes: out, index: index}, nil
}

// Len returns the number of nodes.
func (s *NodeSet) Len() int { return len(s.nodes) }

// Node returns the node at position i.
func (s *NodeSet) Node(i int) Node { return s.nodes[i] }

// Index returns the position of the node with the given code.
func (s *NodeSet) Index(code string) (int, bool) {
	i, ok := s.index[code]
	return i, ok
}

// Codes returns all node codes in index order.
func (s *NodeSet) Codes() []string {
	codes := make([]string, len(s.nodes))
	for i, node := range s.nodes {
		codes[i] = node.Code
	}
	return codes
}
