// Package cluster groups individuals who co-occur, in the same household
// or at the same time, and labels every row with its cluster.
package cluster

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/index"
	"github.com/roach88/puget/internal/pairs"
	"github.com/roach88/puget/internal/partition"
	"github.com/roach88/puget/internal/relation"
	"github.com/roach88/puget/internal/table"
)

// ErrNotImplemented is returned for time co-occurrence on sparse matrices.
var ErrNotImplemented = errors.New("not implemented")

// Method selects the partition strategy.
type Method string

const (
	MethodComponents   Method = "components"
	MethodHierarchical Method = "hierarchical"
)

// DefaultColumn is the column Cluster writes.
const DefaultColumn = "cluster"

// Options configures co-occurrence and partitioning.
type Options struct {
	// IndividualVar identifies the entities being clustered. Required.
	IndividualVar string

	// GroupVar, when set, adds one co-occurrence per shared group.
	GroupVar string

	// TimeVars, when set, add one co-occurrence per pair of timestamps
	// within TimeDelta of each other.
	TimeVars  []string
	TimeDelta time.Duration

	Sparse bool

	Method       Method
	CutThreshold float64

	// Column names the output column.
	Column string
}

func (o Options) withDefaults() Options {
	if o.Method == "" {
		o.Method = MethodComponents
	}
	if o.CutThreshold == 0 {
		o.CutThreshold = partition.DefaultCutThreshold
	}
	if o.Column == "" {
		o.Column = DefaultColumn
	}
	return o
}

func (o Options) validate() error {
	if o.IndividualVar == "" {
		return config.MissingKey("individual_var")
	}
	if o.GroupVar == "" && len(o.TimeVars) == 0 {
		return &config.Error{
			Code:    config.ErrCodeMissingKey,
			Key:     "group_var",
			Message: "one of group_var or time_var is required",
		}
	}
	switch o.Method {
	case MethodComponents, MethodHierarchical:
	default:
		return config.InvalidValue("method", "unknown method %q", o.Method)
	}
	if len(o.TimeVars) > 0 && o.Sparse {
		return fmt.Errorf("%w: time co-occurrence with sparse matrices", ErrNotImplemented)
	}
	return nil
}

// CoOccurrence builds the co-occurrence relation of the individuals in t.
// Group and time co-occurrences add up. The diagonal is always zero.
func CoOccurrence(t *table.Table, opts Options) (relation.Matrix, *index.Entities, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	ents, err := index.FromColumn(t, opts.IndividualVar)
	if err != nil {
		return nil, nil, fmt.Errorf("co-occurrence: %w", err)
	}

	var batches [][]pairs.Pair
	if opts.GroupVar != "" {
		ps, err := pairs.Groups(t, opts.GroupVar, opts.IndividualVar, ents)
		if err != nil {
			return nil, nil, err
		}
		batches = append(batches, ps)
	}
	if len(opts.TimeVars) > 0 {
		ps, err := pairs.TimeWindow(t, opts.IndividualVar, opts.TimeVars, opts.TimeDelta, ents)
		if err != nil {
			return nil, nil, err
		}
		batches = append(batches, ps)
	}

	m, err := relation.Accumulate(ents.Len(), relation.Options{Sparse: opts.Sparse}, batches...)
	if err != nil {
		return nil, nil, err
	}
	return relation.WithZeroDiagonal(m), ents, nil
}

// Summary reports a clustering run.
type Summary struct {
	Individuals int    `json:"individuals"`
	Clusters    int    `json:"clusters"`
	Method      Method `json:"method"`
}

// Cluster labels every row of t with the cluster of its individual. Rows
// with a null individual get a null label.
func Cluster(t *table.Table, opts Options) (*table.Table, Summary, error) {
	opts = opts.withDefaults()
	sum := Summary{Method: opts.Method}

	m, ents, err := CoOccurrence(t, opts)
	if err != nil {
		return nil, sum, err
	}

	var labels []int
	switch opts.Method {
	case MethodHierarchical:
		labels, _, err = partition.Hierarchical(m, opts.CutThreshold)
		if err != nil {
			return nil, sum, config.InvalidValue("cut_threshold", "%v", err)
		}
	default:
		labels = partition.ConnectedComponents(m)
	}

	col := make([]table.Value, t.Len())
	for r := range col {
		v := t.Get(r, opts.IndividualVar)
		if table.IsNull(v) {
			col[r] = table.Null{}
			continue
		}
		i, err := ents.IndexOf(v)
		if err != nil {
			return nil, sum, err
		}
		col[r] = table.Int(labels[i])
	}
	out, err := t.WithColumn(opts.Column, col)
	if err != nil {
		return nil, sum, err
	}

	sum.Individuals = ents.Len()
	sum.Clusters = partition.Count(labels)
	slog.Info("clustered individuals",
		"individuals", sum.Individuals,
		"clusters", sum.Clusters,
		"method", string(sum.Method),
		"sparse", opts.Sparse)
	return out, sum, nil
}
