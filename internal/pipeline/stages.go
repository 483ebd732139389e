package pipeline

import (
	"context"
	"errors"

	"github.com/roach88/puget/internal/cluster"
	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/ingest"
	"github.com/roach88/puget/internal/linkage"
	"github.com/roach88/puget/internal/pairs"
	"github.com/roach88/puget/internal/reconcile"
	"github.com/roach88/puget/internal/table"
)

// DefaultTimeUnit applies when a cluster config sets time_var without
// time_unit.
const DefaultTimeUnit = "days"

// DefaultOutputTable is the table StoreStage writes when none is named.
const DefaultOutputTable = "merged"

// TableWriter stores a table under a name. *store.Store implements it.
type TableWriter interface {
	WriteTable(ctx context.Context, name string, t *table.Table) error
}

var errNoInput = errors.New("stage needs an input table")

// MergeStage reads and merges every table cfg configures. It ignores its
// input table.
func MergeStage(cfg *config.Config) Stage {
	return Stage{Name: "merge", Apply: func(ctx context.Context, _ *table.Table) (Result, error) {
		t, sum, err := ingest.MergeTables(ctx, cfg)
		if err != nil {
			return Result{}, err
		}
		return Result{Table: t, Details: sum, Warnings: sum.Warnings}, nil
	}}
}

// InputStage starts a run from a table that is already loaded.
func InputStage(name string, t *table.Table) Stage {
	return Stage{Name: name, Apply: func(context.Context, *table.Table) (Result, error) {
		return Result{Table: t}, nil
	}}
}

// ReconcileStage resolves per-person conflicts with r.
func ReconcileStage(r *reconcile.Reconciler) Stage {
	return Stage{Name: "reconcile", Apply: func(_ context.Context, in *table.Table) (Result, error) {
		if in == nil {
			return Result{}, errNoInput
		}
		t, rep, err := r.Reconcile(in)
		if err != nil {
			return Result{}, err
		}
		return Result{Table: t, Details: rep, Warnings: rep.Warnings}, nil
	}}
}

// ClusterStage labels individuals with their co-occurrence cluster.
func ClusterStage(opts cluster.Options) Stage {
	return Stage{Name: "cluster", Apply: func(_ context.Context, in *table.Table) (Result, error) {
		if in == nil {
			return Result{}, errNoInput
		}
		t, sum, err := cluster.Cluster(in, opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Table: t, Details: sum}, nil
	}}
}

// LinkStage assigns linkage ids across strategies.
func LinkStage(strategies []linkage.Strategy, opts linkage.Options) Stage {
	return Stage{Name: "link", Apply: func(_ context.Context, in *table.Table) (Result, error) {
		if in == nil {
			return Result{}, errNoInput
		}
		t, sum, err := linkage.LinkRecords(in, strategies, opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Table: t, Details: sum}, nil
	}}
}

// StoreStage writes the working table to w and passes it on unchanged.
func StoreStage(w TableWriter, name string) Stage {
	if name == "" {
		name = DefaultOutputTable
	}
	return Stage{Name: "store", Apply: func(ctx context.Context, in *table.Table) (Result, error) {
		if in == nil {
			return Result{}, errNoInput
		}
		if err := w.WriteTable(ctx, name, in); err != nil {
			return Result{}, err
		}
		return Result{Table: in, Stored: name}, nil
	}}
}

// ClusterOptions converts a cluster config section.
func ClusterOptions(c *config.ClusterConfig) (cluster.Options, error) {
	if c == nil {
		return cluster.Options{}, config.MissingKey("cluster")
	}
	opts := cluster.Options{
		IndividualVar: c.IndividualVar,
		GroupVar:      c.GroupVar,
		TimeVars:      c.TimeVar,
		Sparse:        c.Sparse,
		Method:        cluster.Method(c.Method),
		CutThreshold:  c.CutThreshold,
		Column:        c.Column,
	}
	if len(c.TimeVar) > 0 {
		unit := c.TimeUnit
		if unit == "" {
			unit = DefaultTimeUnit
		}
		delta, err := pairs.ParseDelta(unit, c.TimeDelta)
		if err != nil {
			return cluster.Options{}, err
		}
		opts.TimeDelta = delta
	}
	return opts, nil
}

// LinkOptions converts a link config section. Unset keys keep the
// linkage defaults; match variables are compared in name order.
func LinkOptions(c *config.LinkConfig) ([]linkage.Strategy, linkage.Options, error) {
	opts := linkage.DefaultOptions()
	if c == nil {
		return nil, opts, config.MissingKey("link")
	}
	if len(c.Strategies) == 0 {
		return nil, opts, config.MissingKey("strategies")
	}
	if c.MatchThreshold != nil {
		opts.MatchThreshold = *c.MatchThreshold
	}
	if c.StringMethod != "" {
		opts.StringMethod = c.StringMethod
	}
	if c.StringThreshold != nil {
		opts.StringThreshold = *c.StringThreshold
	}
	opts.DateSwapScore = c.DateSwapScore
	opts.FoldCase = c.FoldCase
	if c.Column != "" {
		opts.IDColumn = c.Column
	}

	strategies := make([]linkage.Strategy, len(c.Strategies))
	for i, sc := range c.Strategies {
		s := linkage.Strategy{BlockVariable: sc.BlockVariable}
		for _, name := range sc.SortedMatchVariables() {
			s.MatchVariables = append(s.MatchVariables, linkage.Field{
				Name: name,
				Kind: linkage.Kind(sc.MatchVariables[name]),
			})
		}
		strategies[i] = s
	}
	return strategies, opts, nil
}

// Steps selects the optional stages StagesFromConfig adds after merge.
type Steps struct {
	Cluster bool
	Link    bool
}

// StagesFromConfig builds merge followed by the selected cluster and link
// stages. Selecting a step whose config section is absent is an error.
func StagesFromConfig(cfg *config.Config, steps Steps) ([]Stage, error) {
	stages := []Stage{MergeStage(cfg)}
	if steps.Cluster {
		opts, err := ClusterOptions(cfg.Cluster)
		if err != nil {
			return nil, err
		}
		stages = append(stages, ClusterStage(opts))
	}
	if steps.Link {
		strategies, opts, err := LinkOptions(cfg.Link)
		if err != nil {
			return nil, err
		}
		stages = append(stages, LinkStage(strategies, opts))
	}
	return stages, nil
}
