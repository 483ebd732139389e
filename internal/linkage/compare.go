package linkage

import (
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/table"
)

// Kind selects how a field is compared.
type Kind string

const (
	// KindString scores 1 when string similarity reaches the threshold.
	KindString Kind = "string"

	// KindDate scores 1 for the same calendar day.
	KindDate Kind = "date"

	// KindExact scores 1 for equal cells.
	KindExact Kind = "exact"
)

// Field is one compared column.
type Field struct {
	Name string
	Kind Kind
}

// DefaultStringMethod and DefaultStringThreshold configure string
// comparison when none is given.
const (
	DefaultStringMethod    = "jarowinkler"
	DefaultStringThreshold = 0.85
)

// Metric returns the string similarity metric registered under name.
func Metric(name string) (strutil.StringMetric, error) {
	switch strings.ToLower(name) {
	case "", "jarowinkler", "jaro_winkler":
		return metrics.NewJaroWinkler(), nil
	case "jaro":
		return metrics.NewJaro(), nil
	case "levenshtein":
		return metrics.NewLevenshtein(), nil
	case "smith_waterman", "smith_waterman_gotoh":
		return metrics.NewSmithWatermanGotoh(), nil
	case "sorensen_dice", "qgram":
		return metrics.NewSorensenDice(), nil
	case "jaccard":
		return metrics.NewJaccard(), nil
	case "hamming":
		return metrics.NewHamming(), nil
	case "overlap":
		return metrics.NewOverlapCoefficient(), nil
	default:
		return nil, config.InvalidValue("string_method", "unknown string method %q", name)
	}
}

// Comparator scores record pairs field by field. Each field contributes 0 or
// 1 (or DateSwapScore for swapped month and day). A missing value on either
// side contributes 0.
type Comparator struct {
	fields    []Field
	metric    strutil.StringMetric
	threshold float64
	swapScore float64
	fold      cases.Caser
	foldCase  bool
}

// NewComparator creates a Comparator for fields using the string and date
// settings of opts.
func NewComparator(fields []Field, opts Options) (*Comparator, error) {
	m, err := Metric(opts.StringMethod)
	if err != nil {
		return nil, err
	}
	if opts.StringThreshold < 0 || opts.StringThreshold > 1 {
		return nil, config.InvalidValue("string_threshold", "must be within [0, 1], got %v", opts.StringThreshold)
	}
	for _, f := range fields {
		switch f.Kind {
		case KindString, KindDate, KindExact:
		default:
			return nil, config.InvalidValue("match_variables", "field %q has unknown comparison %q", f.Name, f.Kind)
		}
	}
	return &Comparator{
		fields:    fields,
		metric:    m,
		threshold: opts.StringThreshold,
		swapScore: opts.DateSwapScore,
		fold:      cases.Fold(),
		foldCase:  opts.FoldCase,
	}, nil
}

// Fields returns the compared fields in order.
func (c *Comparator) Fields() []Field {
	return c.fields
}

// Compare scores rows i and j of t. The result holds one score per field.
func (c *Comparator) Compare(t *table.Table, i, j int) []float64 {
	out := make([]float64, len(c.fields))
	for k, f := range c.fields {
		a, b := t.Get(i, f.Name), t.Get(j, f.Name)
		if table.IsNull(a) || table.IsNull(b) {
			continue
		}
		switch f.Kind {
		case KindString:
			out[k] = c.compareString(a, b)
		case KindDate:
			out[k] = c.compareDate(a, b)
		case KindExact:
			if table.Equal(a, b) {
				out[k] = 1
			}
		}
	}
	return out
}

func (c *Comparator) normalize(v table.Value) string {
	s := norm.NFC.String(strings.TrimSpace(table.Format(v)))
	if c.foldCase {
		s = c.fold.String(s)
	}
	return s
}

func (c *Comparator) compareString(a, b table.Value) float64 {
	sa, sb := c.normalize(a), c.normalize(b)
	if sa == "" || sb == "" {
		return 0
	}
	if strutil.Similarity(sa, sb, c.metric) >= c.threshold {
		return 1
	}
	return 0
}

func (c *Comparator) compareDate(a, b table.Value) float64 {
	ta, okA := table.AsTime(a)
	tb, okB := table.AsTime(b)
	if !okA || !okB {
		if table.Equal(a, b) {
			return 1
		}
		return 0
	}
	ta, tb = table.Truncate(ta), table.Truncate(tb)
	if ta.Equal(tb) {
		return 1
	}
	if c.swapScore > 0 && ta.Year() == tb.Year() &&
		int(ta.Month()) == tb.Day() && ta.Day() == int(tb.Month()) {
		return c.swapScore
	}
	return 0
}

func (f Field) String() string {
	return fmt.Sprintf("%s:%s", f.Name, f.Kind)
}
