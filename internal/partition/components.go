package partition

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/roach88/puget/internal/relation"
)

// ConnectedComponents labels the connected components of m viewed as an
// undirected graph. Only the strict upper triangle is read: a positive
// entry (i, j) with j > i is an edge. The diagonal and lower triangle are
// ignored. A matrix with no edges yields one label per entity.
func ConnectedComponents(m relation.Matrix) []int {
	n := m.Size()
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	m.Each(func(i, j int, w float64) {
		if j > i && w > 0 {
			g.SetEdge(g.NewEdge(simple.Node(int64(i)), simple.Node(int64(j))))
		}
	})

	components := topo.ConnectedComponents(g)
	root := make([]int, n)
	for _, c := range components {
		lowest := lowestID(c)
		for _, node := range c {
			root[node.ID()] = lowest
		}
	}
	return discoveryLabels(root)
}

func lowestID(nodes []graph.Node) int {
	lowest := nodes[0].ID()
	for _, node := range nodes[1:] {
		if node.ID() < lowest {
			lowest = node.ID()
		}
	}
	return int(lowest)
}

// discoveryLabels turns per-entity group representatives into labels 1..k,
// numbering groups in the order their first entity appears.
func discoveryLabels(root []int) []int {
	labels := make([]int, len(root))
	next := 0
	seen := make(map[int]int)
	for i, r := range root {
		l, ok := seen[r]
		if !ok {
			next++
			l = next
			seen[r] = l
		}
		labels[i] = l
	}
	return labels
}

// Count returns the number of distinct labels.
func Count(labels []int) int {
	seen := make(map[int]bool)
	for _, l := range labels {
		seen[l] = true
	}
	return len(seen)
}
