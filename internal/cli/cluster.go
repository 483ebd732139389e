package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/pipeline"
)

// ClusterOptions holds flags for the cluster command.
type ClusterOptions struct {
	*RootOptions
	SinkOptions
	config.ClusterConfig
}

// NewClusterCommand creates the cluster command.
func NewClusterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClusterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cluster <input.csv>",
		Short: "Cluster individuals by shared groups or service times",
		Long: `Build the co-occurrence matrix of the individuals in a CSV file and label
every row with the cluster of its individual.

Individuals co-occur once per shared group and once per pair of timestamps
within --time-delta of each other. The components strategy clusters any
co-occurring individuals; hierarchical requires every pair in a cluster to
co-occur.

Example:
  puget cluster enrollments.csv --individual-var PersonalID --group-var HouseholdID
  puget cluster shelter.csv --individual-var PersonalID --time-var EntryDate --time-delta 1 -o out.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCluster(opts, args[0], cmd)
		},
	}

	opts.SinkOptions.addFlags(cmd)
	f := cmd.Flags()
	f.StringVar(&opts.IndividualVar, "individual-var", "", "column identifying individuals (required)")
	f.StringVar(&opts.GroupVar, "group-var", "", "column identifying groups")
	f.StringSliceVar(&opts.TimeVar, "time-var", nil, "timestamp columns for time co-occurrence")
	f.StringVar(&opts.TimeUnit, "time-unit", pipeline.DefaultTimeUnit, "unit of --time-delta")
	f.Float64Var(&opts.TimeDelta, "time-delta", 0, "time co-occurrence tolerance")
	f.StringVar(&opts.Method, "strategy", "components", "partition strategy (components|hierarchical)")
	f.BoolVar(&opts.Sparse, "sparse", false, "use a sparse co-occurrence matrix")
	f.Float64Var(&opts.CutThreshold, "cut-threshold", 0, "hierarchical cut height (default just above 1)")
	f.StringVar(&opts.Column, "column", "", "output column (default \"cluster\")")
	_ = cmd.MarkFlagRequired("individual-var")

	return cmd
}

func runCluster(opts *ClusterOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	copts, err := pipeline.ClusterOptions(&opts.ClusterConfig)
	if err != nil {
		return formatter.Fail("invalid options", err)
	}
	in, err := readInput(path, opts.TimeVar)
	if err != nil {
		return formatter.Fail("failed to read input", err)
	}
	return runPipeline(opts.RootOptions, &opts.SinkOptions, cmd, "cluster", []pipeline.Stage{
		pipeline.InputStage("read", in),
		pipeline.ClusterStage(copts),
	})
}
