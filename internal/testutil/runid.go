package testutil

// DefaultRunID is used when a scenario or test names no run id.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator returns the same run id on every call, so stored
// runs and snapshots are reproducible. It satisfies
// pipeline.RunIDGenerator.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id, or DefaultRunID when
// id is empty.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
