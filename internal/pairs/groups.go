package pairs

import (
	"fmt"

	"github.com/roach88/puget/internal/index"
	"github.com/roach88/puget/internal/table"
)

// Groups emits, for every group in groupVar, all ordered pairs of distinct
// individuals in it (permutations of size 2). Individuals are mapped to
// dense indices through ents.
//
// Rows with a null group or individual are ignored. Groups are visited in
// first-occurrence order and individuals within a group in first-occurrence
// order, so the output is deterministic. A group with one individual
// contributes nothing.
func Groups(t *table.Table, groupVar, individualVar string, ents *index.Entities) ([]Pair, error) {
	if err := t.Require(groupVar, individualVar); err != nil {
		return nil, fmt.Errorf("group pairs: %w", err)
	}
	groups, err := t.GroupBy(groupVar)
	if err != nil {
		return nil, fmt.Errorf("group pairs: %w", err)
	}

	var out []Pair
	for _, g := range groups {
		var members []int
		seen := make(map[int]bool)
		for _, r := range g.Rows {
			v := t.Get(r, individualVar)
			if table.IsNull(v) {
				continue
			}
			i, err := ents.IndexOf(v)
			if err != nil {
				return nil, fmt.Errorf("group pairs: %w", err)
			}
			if !seen[i] {
				seen[i] = true
				members = append(members, i)
			}
		}
		for _, a := range members {
			for _, b := range members {
				if a != b {
					out = append(out, Pair{I: a, J: b})
				}
			}
		}
	}
	return out, nil
}
