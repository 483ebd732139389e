package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/puget/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Name    string   `json:"name,omitempty"`
	Tables  []string `json:"tables,omitempty"`
	Cluster bool     `json:"cluster"`
	Link    bool     `json:"link"`
	Problem *Problem `json:"problem,omitempty"`
}

// Problem is a configuration error in JSON-friendly form.
type Problem struct {
	Code    string `json:"code"`
	Table   string `json:"table,omitempty"`
	Key     string `json:"key"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func problemOf(ce *config.Error) *Problem {
	return &Problem{Code: ce.Code, Table: ce.Table, Key: ce.Key, Message: ce.Message, Line: ce.Line}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a pipeline configuration",
		Long: `Validate a puget YAML configuration against the configuration schema
without reading any data.

Reports the first schema violation with its key and position.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		var ce *config.Error
		if !errors.As(err, &ce) {
			return formatter.Fail("validation failed", err)
		}
		if formatter.Format == "json" {
			_ = formatter.Error(ce.Code, ce.Error(), ValidationResult{Valid: false, Problem: problemOf(ce)})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			fmt.Fprintf(formatter.Writer, "  %s\n", ce.Error())
		}
		// Validation failures = exit code 1
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	result := ValidationResult{
		Valid:   true,
		Name:    cfg.Name,
		Cluster: cfg.Cluster != nil,
		Link:    cfg.Link != nil,
	}
	for name := range cfg.Tables {
		result.Tables = append(result.Tables, name)
	}
	slices.Sort(result.Tables)

	formatter.VerboseLog("Validated %s: %d table(s)", path, len(result.Tables))
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, "✓ Config valid")
	return nil
}
