// Package relation accumulates entity pairs into a weighted co-occurrence
// matrix.
//
// Matrices are values: Accumulate, Sum and WithZeroDiagonal each return a
// new Matrix and never modify their inputs. Dense matrices are backed by a
// gonum mat.Dense; sparse matrices keep one map per row.
package relation

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/puget/internal/pairs"
)

// Matrix is a read-only n×n weighted relation.
type Matrix interface {
	// Size returns n.
	Size() int

	// At returns the weight of (i, j).
	At(i, j int) float64

	// IsSparse reports the storage layout.
	IsSparse() bool

	// Each calls fn for every non-zero entry in row-major order.
	Each(fn func(i, j int, w float64))
}

// Options selects the storage layout.
type Options struct {
	Sparse bool
}

// builder is the mutable accumulator behind the pure functions.
type builder struct {
	n     int
	dense *mat.Dense
	rows  []map[int]float64
}

func newBuilder(n int, sparse bool) *builder {
	b := &builder{n: n}
	switch {
	case sparse:
		b.rows = make([]map[int]float64, n)
	case n > 0:
		b.dense = mat.NewDense(n, n, nil)
	}
	return b
}

func (b *builder) add(i, j int, w float64) {
	if b.rows != nil {
		if b.rows[i] == nil {
			b.rows[i] = make(map[int]float64)
		}
		b.rows[i][j] += w
		if b.rows[i][j] == 0 {
			delete(b.rows[i], j)
		}
		return
	}
	b.dense.Set(i, j, b.dense.At(i, j)+w)
}

func (b *builder) build() Matrix {
	if b.rows != nil {
		return &sparse{n: b.n, rows: b.rows}
	}
	return &dense{n: b.n, m: b.dense}
}

// Accumulate folds pair batches into a new n×n matrix: every pair (i, j)
// adds one to entry (i, j). Pairs are counted with multiplicity.
func Accumulate(n int, opts Options, batches ...[]pairs.Pair) (Matrix, error) {
	b := newBuilder(n, opts.Sparse)
	for _, batch := range batches {
		for _, p := range batch {
			if p.I < 0 || p.I >= n || p.J < 0 || p.J >= n {
				return nil, fmt.Errorf("pair (%d, %d) out of range for %d entities", p.I, p.J, n)
			}
			b.add(p.I, p.J, 1)
		}
	}
	return b.build(), nil
}

// Sum adds matrices of equal size. The result is sparse only if every input
// is sparse.
func Sum(ms ...Matrix) (Matrix, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("sum of no matrices")
	}
	n := ms[0].Size()
	sp := true
	for _, m := range ms {
		if m.Size() != n {
			return nil, fmt.Errorf("size mismatch: %d and %d", n, m.Size())
		}
		sp = sp && m.IsSparse()
	}
	b := newBuilder(n, sp)
	for _, m := range ms {
		m.Each(b.add)
	}
	return b.build(), nil
}

// WithZeroDiagonal returns a copy of m with every (i, i) entry set to zero.
func WithZeroDiagonal(m Matrix) Matrix {
	b := newBuilder(m.Size(), m.IsSparse())
	m.Each(func(i, j int, w float64) {
		if i != j {
			b.add(i, j, w)
		}
	})
	return b.build()
}

// ToDense copies m into a gonum dense matrix. Returns nil for an empty
// matrix, which gonum cannot represent.
func ToDense(m Matrix) *mat.Dense {
	if m.Size() == 0 {
		return nil
	}
	d := mat.NewDense(m.Size(), m.Size(), nil)
	m.Each(d.Set)
	return d
}

type dense struct {
	n int
	m *mat.Dense
}

func (d *dense) Size() int      { return d.n }
func (d *dense) IsSparse() bool { return false }

func (d *dense) At(i, j int) float64 {
	return d.m.At(i, j)
}

func (d *dense) Each(fn func(i, j int, w float64)) {
	for i := 0; i < d.n; i++ {
		for j := 0; j < d.n; j++ {
			if w := d.m.At(i, j); w != 0 {
				fn(i, j, w)
			}
		}
	}
}

type sparse struct {
	n    int
	rows []map[int]float64
}

func (s *sparse) Size() int      { return s.n }
func (s *sparse) IsSparse() bool { return true }

func (s *sparse) At(i, j int) float64 {
	if i < 0 || i >= s.n || j < 0 || j >= s.n {
		panic(fmt.Sprintf("relation: index (%d, %d) out of range", i, j))
	}
	return s.rows[i][j]
}

func (s *sparse) Each(fn func(i, j int, w float64)) {
	for i, row := range s.rows {
		cols := make([]int, 0, len(row))
		for j := range row {
			cols = append(cols, j)
		}
		slices.Sort(cols)
		for _, j := range cols {
			fn(i, j, row[j])
		}
	}
}
