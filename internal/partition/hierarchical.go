package partition

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/puget/internal/relation"
)

// DefaultCutThreshold cuts just above the largest finite distance a
// count-valued relation produces (1/1), so members of a cluster all
// co-occur and entities that never co-occur stay apart.
const DefaultCutThreshold = 1 + 1e-6

// Merge is one agglomeration step. A and B are cluster ids: 0..n-1 are the
// entities and n+k is the cluster created by merge k.
type Merge struct {
	A, B     int
	Distance float64
	Size     int
}

// Dendrogram records the n-1 merges of an agglomerative clustering in order.
type Dendrogram struct {
	N      int
	Merges []Merge
}

// DistanceMatrix converts a co-occurrence relation into distances:
// D[i][j] = 1/T[i][j] where the strict upper triangle entry is positive,
// D[i][i] = 0, and a sentinel elsewhere. The sentinel is twice the largest
// finite distance (at least 2), so it is larger than every finite distance.
func DistanceMatrix(m relation.Matrix) (*mat.SymDense, float64) {
	n := m.Size()
	if n == 0 {
		return nil, 0
	}

	maxFinite := 1.0
	m.Each(func(i, j int, w float64) {
		if j > i && w > 0 {
			maxFinite = math.Max(maxFinite, 1/w)
		}
	})
	sentinel := 2 * maxFinite

	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, sentinel)
		}
	}
	m.Each(func(i, j int, w float64) {
		if j > i && w > 0 {
			d.SetSym(i, j, 1/w)
		}
	})
	return d, sentinel
}

// CompleteLinkage clusters with the complete-linkage (farthest neighbour)
// rule: the distance between two clusters is the largest distance between
// their members. At each step the closest pair merges; ties go to the pair
// whose smallest members come first.
func CompleteLinkage(d mat.Symmetric) *Dendrogram {
	if d == nil {
		return &Dendrogram{}
	}
	n := d.SymmetricDim()
	dend := &Dendrogram{N: n}
	if n < 2 {
		return dend
	}

	// Slot i holds the cluster whose smallest member is entity i.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			dist[i][j] = d.At(i, j)
		}
	}
	id := make([]int, n)
	size := make([]int, n)
	active := make([]bool, n)
	for i := range id {
		id[i] = i
		size[i] = 1
		active[i] = true
	}

	for step := 0; step < n-1; step++ {
		p, q := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && dist[i][j] < best {
					best = dist[i][j]
					p, q = i, j
				}
			}
		}
		if p < 0 {
			// Only reachable with NaN distances.
			break
		}

		a, b := id[p], id[q]
		if a > b {
			a, b = b, a
		}
		dend.Merges = append(dend.Merges, Merge{A: a, B: b, Distance: best, Size: size[p] + size[q]})

		for r := 0; r < n; r++ {
			if active[r] && r != p && r != q {
				v := math.Max(dist[p][r], dist[q][r])
				dist[p][r], dist[r][p] = v, v
			}
		}
		active[q] = false
		id[p] = n + step
		size[p] += size[q]
	}
	return dend
}

// FlatCut applies the merges whose distance is at most threshold and labels
// the resulting clusters in discovery order. Complete-linkage merge
// distances never decrease, so the first merge above the threshold ends
// the cut.
func FlatCut(dend *Dendrogram, threshold float64) []int {
	n := dend.N
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	// rep maps a cluster id to one of its member entities.
	rep := make([]int, n+len(dend.Merges))
	for i := 0; i < n; i++ {
		rep[i] = i
	}
	for k, mg := range dend.Merges {
		if mg.Distance > threshold {
			break
		}
		ra, rb := find(rep[mg.A]), find(rep[mg.B])
		if ra > rb {
			ra, rb = rb, ra
		}
		parent[rb] = ra
		rep[n+k] = ra
	}

	root := make([]int, n)
	for i := range root {
		root[i] = find(i)
	}
	return discoveryLabels(root)
}

// Hierarchical partitions m by complete-linkage clustering of its distance
// matrix, cut at threshold.
func Hierarchical(m relation.Matrix, threshold float64) ([]int, *Dendrogram, error) {
	if threshold <= 0 || math.IsNaN(threshold) {
		return nil, nil, fmt.Errorf("cut threshold must be positive, got %v", threshold)
	}
	d, _ := DistanceMatrix(m)
	if d == nil {
		return []int{}, &Dendrogram{}, nil
	}
	dend := CompleteLinkage(d)
	return FlatCut(dend, threshold), dend, nil
}
