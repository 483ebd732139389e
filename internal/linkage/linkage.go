// Package linkage links records that describe the same person without a
// shared identifier.
//
// Each Strategy blocks on one column, so only rows sharing its value are
// compared, then scores candidate pairs field by field with a Comparator.
// Pairs scoring above the match threshold are matches. LinkRecords unions
// the matches of every strategy and assigns one linkage id per connected
// component.
package linkage

import (
	"fmt"
	"log/slog"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/pairs"
	"github.com/roach88/puget/internal/partition"
	"github.com/roach88/puget/internal/relation"
	"github.com/roach88/puget/internal/table"
)

// DefaultMatchThreshold is the score a pair must exceed to match.
const DefaultMatchThreshold = 2

// DefaultIDColumn is the column LinkRecords writes.
const DefaultIDColumn = "linkage_PID"

// Strategy is one blocking pass.
type Strategy struct {
	// BlockVariable is the column candidate pairs must agree on.
	BlockVariable string

	// MatchVariables are the fields compared for each candidate pair.
	// Listing the block variable here makes it count toward the score.
	MatchVariables []Field
}

// Options configures comparison and matching.
type Options struct {
	MatchThreshold  float64
	StringMethod    string
	StringThreshold float64

	// DateSwapScore is the partial credit for dates whose month and day
	// are swapped. Zero disables it.
	DateSwapScore float64

	// FoldCase compares strings case-insensitively.
	FoldCase bool

	// IDColumn names the output column.
	IDColumn string
}

// DefaultOptions returns the standard matching configuration.
func DefaultOptions() Options {
	return Options{
		MatchThreshold:  DefaultMatchThreshold,
		StringMethod:    DefaultStringMethod,
		StringThreshold: DefaultStringThreshold,
		IDColumn:        DefaultIDColumn,
	}
}

// Match is a scored candidate pair of rows (I < J).
type Match struct {
	I, J     int
	Features []float64
	Score    float64
	Match    bool
}

// MatchTable holds every candidate pair of one strategy.
type MatchTable struct {
	Strategy Strategy
	Pairs    []Match
}

// Matched returns the matching pairs.
func (mt *MatchTable) Matched() []pairs.Pair {
	var out []pairs.Pair
	for _, m := range mt.Pairs {
		if m.Match {
			out = append(out, pairs.Pair{I: m.I, J: m.J})
		}
	}
	return out
}

// BlockAndMatch scores all candidate pairs of t sharing a value of
// s.BlockVariable. A pair matches when its score is strictly greater than
// opts.MatchThreshold.
func BlockAndMatch(t *table.Table, s Strategy, opts Options) (*MatchTable, error) {
	cols := []string{s.BlockVariable}
	for _, f := range s.MatchVariables {
		cols = append(cols, f.Name)
	}
	if err := t.Require(cols...); err != nil {
		return nil, fmt.Errorf("block on %s: %w", s.BlockVariable, err)
	}
	cmp, err := NewComparator(s.MatchVariables, opts)
	if err != nil {
		return nil, err
	}

	candidates, err := pairs.Blocks(t, s.BlockVariable)
	if err != nil {
		return nil, err
	}

	mt := &MatchTable{Strategy: s, Pairs: make([]Match, 0, len(candidates))}
	matched := 0
	for _, p := range candidates {
		features := cmp.Compare(t, p.I, p.J)
		score := 0.0
		for _, f := range features {
			score += f
		}
		m := Match{I: p.I, J: p.J, Features: features, Score: score, Match: score > opts.MatchThreshold}
		if m.Match {
			matched++
		}
		mt.Pairs = append(mt.Pairs, m)
	}
	slog.Debug("blocked and matched",
		"block_variable", s.BlockVariable,
		"candidates", len(candidates),
		"matches", matched)
	return mt, nil
}

// Summary reports a linkage run.
type Summary struct {
	Candidates int `json:"candidates"`
	Matches    int `json:"matches"`
	Linked     int `json:"linked"`
	Singletons int `json:"singletons"`
}

// LinkRecords runs every strategy, unions their matches and writes a
// linkage id column. Multi-record components get ids 1..k in discovery
// order; records matching nothing get the following ids in row order.
func LinkRecords(t *table.Table, strategies []Strategy, opts Options) (*table.Table, Summary, error) {
	var sum Summary
	if len(strategies) == 0 {
		return nil, sum, config.MissingKey("strategies")
	}
	if opts.IDColumn == "" {
		opts.IDColumn = DefaultIDColumn
	}

	var matched [][]pairs.Pair
	for _, s := range strategies {
		mt, err := BlockAndMatch(t, s, opts)
		if err != nil {
			return nil, sum, err
		}
		sum.Candidates += len(mt.Pairs)
		m := mt.Matched()
		sum.Matches += len(m)
		matched = append(matched, m)
	}

	rel, err := relation.Accumulate(t.Len(), relation.Options{Sparse: true}, matched...)
	if err != nil {
		return nil, sum, err
	}
	ids := linkageIDs(partition.ConnectedComponents(rel))

	col := make([]table.Value, len(ids))
	for i, id := range ids {
		col[i] = table.Int(id)
	}
	out, err := t.WithColumn(opts.IDColumn, col)
	if err != nil {
		return nil, sum, err
	}

	size := make(map[int]int)
	for _, id := range ids {
		size[id]++
	}
	for _, n := range size {
		if n > 1 {
			sum.Linked++
		} else {
			sum.Singletons++
		}
	}
	slog.Info("linked records",
		"rows", t.Len(),
		"candidates", sum.Candidates,
		"matches", sum.Matches,
		"linked_groups", sum.Linked,
		"singletons", sum.Singletons)
	return out, sum, nil
}

// linkageIDs renumbers component labels so that multi-member components
// come first, keeping their discovery order, followed by singletons.
func linkageIDs(labels []int) []int {
	size := make(map[int]int)
	for _, l := range labels {
		size[l]++
	}
	renum := make(map[int]int)
	next := 0
	for _, l := range labels {
		if _, ok := renum[l]; !ok && size[l] > 1 {
			next++
			renum[l] = next
		}
	}
	for _, l := range labels {
		if _, ok := renum[l]; !ok {
			next++
			renum[l] = next
		}
	}
	ids := make([]int, len(labels))
	for i, l := range labels {
		ids[i] = renum[l]
	}
	return ids
}

// IdentityStrategies blocks on each of blockVars in turn and compares all of
// fields every time.
func IdentityStrategies(blockVars []string, fields []Field) []Strategy {
	out := make([]Strategy, len(blockVars))
	for i, b := range blockVars {
		out[i] = Strategy{BlockVariable: b, MatchVariables: fields}
	}
	return out
}
