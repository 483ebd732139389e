package pairs

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/roach88/puget/internal/table"
)

// BlockIndex is an inverted index from blocking value to the rows holding
// it. Row sets are roaring bitmaps.
type BlockIndex struct {
	keys []table.Value
	rows []*roaring.Bitmap
}

// NewBlockIndex indexes column blockVar of t. Null cells are not indexed,
// so rows missing the blocking value never form candidate pairs.
func NewBlockIndex(t *table.Table, blockVar string) (*BlockIndex, error) {
	vals, err := t.Column(blockVar)
	if err != nil {
		return nil, fmt.Errorf("block index: %w", err)
	}
	if uint64(len(vals)) > math.MaxUint32 {
		return nil, fmt.Errorf("block index: %d rows exceeds the 32-bit row limit", len(vals))
	}

	b := &BlockIndex{}
	pos := make(map[string]int)
	for i, v := range vals {
		if table.IsNull(v) {
			continue
		}
		k := table.Key(v)
		p, ok := pos[k]
		if !ok {
			p = len(b.keys)
			pos[k] = p
			b.keys = append(b.keys, v)
			b.rows = append(b.rows, roaring.New())
		}
		b.rows[p].Add(uint32(i))
	}
	return b, nil
}

// Len returns the number of distinct blocking values.
func (b *BlockIndex) Len() int {
	return len(b.keys)
}

// Key returns the blocking value of block k.
func (b *BlockIndex) Key(k int) table.Value {
	return b.keys[k]
}

// Size returns the number of rows in block k.
func (b *BlockIndex) Size(k int) int {
	return int(b.rows[k].GetCardinality())
}

// Rows returns the rows of block k in ascending order.
func (b *BlockIndex) Rows(k int) []int {
	ids := b.rows[k].ToArray()
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// CandidateCount returns the number of pairs Pairs would emit.
func (b *BlockIndex) CandidateCount() int {
	n := 0
	for k := range b.rows {
		s := b.Size(k)
		n += s * (s - 1) / 2
	}
	return n
}

// Pairs emits every unordered row pair (I < J) within each block, blocks in
// first-occurrence order.
func (b *BlockIndex) Pairs() []Pair {
	out := make([]Pair, 0, b.CandidateCount())
	for k := range b.rows {
		rows := b.Rows(k)
		for x := 0; x < len(rows); x++ {
			for y := x + 1; y < len(rows); y++ {
				out = append(out, Pair{I: rows[x], J: rows[y]})
			}
		}
	}
	return out
}

// Blocks returns the candidate row pairs of t that share a non-null value in
// blockVar.
func Blocks(t *table.Table, blockVar string) ([]Pair, error) {
	b, err := NewBlockIndex(t, blockVar)
	if err != nil {
		return nil, err
	}
	return b.Pairs(), nil
}
