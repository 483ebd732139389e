// Package pairs enumerates candidate entity pairs from a table.
//
// Three generators share the Pair type:
//   - Groups: ordered pairs of distinct individuals sharing a group
//   - Blocks: unordered row pairs sharing a blocking value
//   - TimeWindow: ordered pairs of individuals whose timestamps lie within
//     a tolerance of each other
//
// Generators never deduplicate across calls; multiplicity is meaningful to
// the relation builder, which counts every emitted pair.
package pairs

// Pair is an ordered pair of dense indices.
type Pair struct {
	I, J int
}
