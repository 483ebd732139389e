package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/puget/internal/pipeline"
	"github.com/roach88/puget/internal/reconcile"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	SinkOptions

	PersonKey string
	TimeVar   []string
	Boolean   []string
	Numeric   []string
	Dedup     []string
	DOB       string
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <input.csv>",
		Short: "Resolve conflicting values within each person's records",
		Long: `Group the rows of a CSV file by person and resolve fields whose values
disagree: dates become their midpoint when they are close (null otherwise),
booleans their maximum, and numeric codes null. Rows are then deduplicated
on --dedup, keeping the last.

Omitting --boolean, --numeric-code or --dedup skips that step with a warning.

Example:
  puget reconcile client.csv --person-key PersonalID --time-var DOB \
    --boolean VeteranStatus --numeric-code Gender --dedup PersonalID`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], cmd)
		},
	}

	opts.SinkOptions.addFlags(cmd)
	f := cmd.Flags()
	f.StringVar(&opts.PersonKey, "person-key", "", "column identifying a person (required)")
	f.StringSliceVar(&opts.TimeVar, "time-var", nil, "date columns resolved to their midpoint (required)")
	f.StringSliceVar(&opts.Boolean, "boolean", nil, "boolean columns resolved to their maximum")
	f.StringSliceVar(&opts.Numeric, "numeric-code", nil, "numeric code columns nulled on conflict")
	f.StringSliceVar(&opts.Dedup, "dedup", nil, "columns for the final deduplication")
	f.StringVar(&opts.DOB, "dob", "", "date of birth column left to the date of birth rule")
	_ = cmd.MarkFlagRequired("person-key")
	_ = cmd.MarkFlagRequired("time-var")

	return cmd
}

func runReconcile(opts *ReconcileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// An omitted list flag stays nil, which the reconciler reports.
	list := func(name string, vals []string) []string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		if vals == nil {
			return []string{}
		}
		return vals
	}
	r, err := reconcile.New(reconcile.Policy{
		PersonKey:     opts.PersonKey,
		TimeFields:    list("time-var", opts.TimeVar),
		BooleanFields: list("boolean", opts.Boolean),
		NumericFields: list("numeric-code", opts.Numeric),
		DedupKeys:     list("dedup", opts.Dedup),
		DOBField:      opts.DOB,
	})
	if err != nil {
		return formatter.Fail("invalid options", err)
	}

	in, err := readInput(path, opts.TimeVar)
	if err != nil {
		return formatter.Fail("failed to read input", err)
	}
	return runPipeline(opts.RootOptions, &opts.SinkOptions, cmd, "reconcile", []pipeline.Stage{
		pipeline.InputStage("read", in),
		pipeline.ReconcileStage(r),
	})
}
