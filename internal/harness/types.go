package harness

import (
	"github.com/roach88/puget/internal/pipeline"
	"github.com/roach88/puget/internal/table"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Summary is the run summary reported by the pipeline driver.
	Summary pipeline.RunSummary `json:"summary"`

	// Table is the final table, nil when the run failed.
	Table *table.Table `json:"-"`

	// Matrix is the co-occurrence matrix of a cooccurrence scenario.
	Matrix [][]float64 `json:"matrix,omitempty"`

	// Err is the run error, if any.
	Err error `json:"-"`

	// Errors lists failed expectations.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError records a failed expectation and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
