package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/puget/internal/ingest"
	"github.com/roach88/puget/internal/pipeline"
	"github.com/roach88/puget/internal/store"
	"github.com/roach88/puget/internal/table"
)

// SinkOptions holds the output flags shared by pipeline commands.
type SinkOptions struct {
	// Output is a CSV path for the final table; "-" writes to stdout.
	Output string

	// Database and Table name the SQLite sink.
	Database string
	Table    string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs pipeline.RunIDGenerator
}

func (o *SinkOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Output, "output", "o", "", `write the result table as CSV ("-" for stdout)`)
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database for the result table and run record")
	cmd.Flags().StringVar(&o.Table, "table", "", "SQLite table name (default \"merged\")")
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// configureLogging installs a text slog handler on w.
func configureLogging(opts *RootOptions, w io.Writer) {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// signalContext derives a context canceled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runPipeline runs stages, adding the SQLite sink when a database is set,
// writes the result CSV and reports the run summary.
func runPipeline(rootOpts *RootOptions, sink *SinkOptions, cmd *cobra.Command, name string, stages []pipeline.Stage) error {
	formatter := newFormatter(rootOpts, cmd)
	configureLogging(rootOpts, cmd.ErrOrStderr())

	ctx, cancel := signalContext(cmd)
	defer cancel()

	ids := sink.RunIDs
	if ids == nil {
		ids = pipeline.UUIDv7Generator{}
	}
	driverOpts := []pipeline.Option{pipeline.WithRunIDGenerator(ids)}

	if sink.Database != "" {
		slog.Info("opening database", "path", sink.Database)
		st, err := store.Open(sink.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		stages = append(stages, pipeline.StoreStage(st, sink.Table))
		driverOpts = append(driverOpts, pipeline.WithRunRecorder(st))
	}

	out, sum, err := pipeline.New(name, stages, driverOpts...).Run(ctx, nil)
	if err != nil {
		return formatter.Fail(name+" failed", err)
	}

	if sink.Output != "" {
		if err := writeOutput(cmd, sink.Output, out); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		formatter.VerboseLog("Wrote %d rows to %s", out.Len(), sink.Output)
		if sink.Output == "-" {
			// Keep stdout a clean CSV stream.
			formatter.Writer = formatter.GetErrWriter()
		}
	}
	return formatter.Run(sum)
}

func writeOutput(cmd *cobra.Command, path string, t *table.Table) error {
	if path == "-" {
		return ingest.WriteCSV(cmd.OutOrStdout(), t)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ingest.WriteCSV(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// readInput loads one CSV with the reader's type inference. timeVars are
// parsed as dates.
func readInput(path string, timeVars []string) (*table.Table, error) {
	return ingest.ReadTable(
		ingest.Manifest{{Name: "input", Path: path}},
		ingest.ReadOptions{Table: "input", TimeVar: timeVars},
	)
}
