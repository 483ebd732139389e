package cli

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/linkage"
	"github.com/roach88/puget/internal/pipeline"
)

// LinkOptions holds flags for the link command.
type LinkOptions struct {
	*RootOptions
	SinkOptions

	Config  string
	TimeVar []string
}

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LinkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "link <input.csv>",
		Short: "Link records that describe the same person",
		Long: `Block the records of a CSV file on each strategy's block variable, score
candidate pairs field by field and assign a linkage id to every connected
group of matching records.

Strategies and thresholds come from the link section of --config. Columns
compared as dates are parsed as dates when the input is read.

Example:
  puget link clients.csv --config link.yaml -o linked.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(opts, args[0], cmd)
		},
	}

	opts.SinkOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Config, "config", "", "YAML configuration with a link section (required)")
	cmd.Flags().StringSliceVar(&opts.TimeVar, "time-var", nil, "additional columns to parse as dates")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runLink(opts *LinkOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return formatter.Fail("invalid config", err)
	}
	strategies, lopts, err := pipeline.LinkOptions(cfg.Link)
	if err != nil {
		return formatter.Fail("invalid config", err)
	}

	in, err := readInput(path, dateFields(strategies, opts.TimeVar))
	if err != nil {
		return formatter.Fail("failed to read input", err)
	}
	return runPipeline(opts.RootOptions, &opts.SinkOptions, cmd, "link", []pipeline.Stage{
		pipeline.InputStage("read", in),
		pipeline.LinkStage(strategies, lopts),
	})
}

// dateFields returns extra plus every field compared as a date, once each.
func dateFields(strategies []linkage.Strategy, extra []string) []string {
	out := slices.Clone(extra)
	for _, s := range strategies {
		for _, f := range s.MatchVariables {
			if f.Kind == linkage.KindDate && !slices.Contains(out, f.Name) {
				out = append(out, f.Name)
			}
		}
	}
	return out
}
