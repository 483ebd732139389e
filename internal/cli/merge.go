package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/pipeline"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	SinkOptions

	Cluster bool
	Link    bool
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <config.yaml>",
		Short: "Merge HMIS tables into one row per person per enrollment",
		Long: `Read every table the configuration lists, reconcile the client table and
left-join all tables onto the enrollments. Optionally cluster and link the
merged rows using the cluster and link sections of the configuration.

The output section of the configuration sets the default database and table;
--db and --table override it.

Example:
  puget merge king.yaml --db king.db
  puget merge king.yaml --cluster --link -o merged.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args[0], cmd)
		},
	}

	opts.SinkOptions.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.Cluster, "cluster", false, "cluster individuals after merging")
	cmd.Flags().BoolVar(&opts.Link, "link", false, "link records after merging")

	return cmd
}

func runMerge(opts *MergeOptions, path string, cmd *cobra.Command) error {
	cfg, err := config.Load(path)
	if err != nil {
		return newFormatter(opts.RootOptions, cmd).Fail("invalid config", err)
	}

	sink := opts.SinkOptions
	if cfg.Output != nil {
		if sink.Database == "" {
			sink.Database = cfg.Resolve(cfg.Output.DB)
		}
		if sink.Table == "" {
			sink.Table = cfg.Output.Table
		}
	}

	stages, err := pipeline.StagesFromConfig(cfg, pipeline.Steps{Cluster: opts.Cluster, Link: opts.Link})
	if err != nil {
		return newFormatter(opts.RootOptions, cmd).Fail("invalid config", err)
	}

	name := cfg.Name
	if name == "" {
		name = "merge"
	}
	return runPipeline(opts.RootOptions, &sink, cmd, name, stages)
}
