package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is a complete pipeline configuration.
type Config struct {
	Name    string   `yaml:"name"`
	DataDir string   `yaml:"data_dir"`
	Paths   []string `yaml:"paths"`

	// DestinationMap is a CSV file mapping exit destination codes to names.
	DestinationMap string `yaml:"destination_map"`

	// Groups keeps only enrollments in households of more than one row.
	Groups bool `yaml:"groups"`

	Tables  map[string]TableConfig `yaml:"tables"`
	Cluster *ClusterConfig         `yaml:"cluster"`
	Link    *LinkConfig            `yaml:"link"`
	Output  *OutputConfig          `yaml:"output"`

	// dir is the directory of the configuration file. Relative paths
	// resolve against it.
	dir string
}

// TableConfig holds the ingestion keys every table understands, plus
// reader-specific keys in Extra.
type TableConfig struct {
	File  string            `yaml:"file"`
	Files map[string]string `yaml:"files"`

	ColumnsToDrop         []string `yaml:"columns_to_drop"`
	CategoricalVar        []string `yaml:"categorical_var"`
	CategoricalUnknown    []int64  `yaml:"categorical_unknown"`
	TimeVar               []string `yaml:"time_var"`
	StringVar             []string `yaml:"string_var"`
	DuplicateCheckColumns []string `yaml:"duplicate_check_columns"`

	Extra map[string]any `yaml:",inline"`
}

// ClusterConfig configures co-occurrence clustering.
type ClusterConfig struct {
	IndividualVar string   `yaml:"individual_var"`
	GroupVar      string   `yaml:"group_var"`
	TimeVar       []string `yaml:"time_var"`
	TimeUnit      string   `yaml:"time_unit"`
	TimeDelta     float64  `yaml:"time_delta"`
	Sparse        bool     `yaml:"sparse"`
	Method        string   `yaml:"method"`
	CutThreshold  float64  `yaml:"cut_threshold"`
	Column        string   `yaml:"column"`
}

// LinkConfig configures record linkage. Pointer fields distinguish an
// explicit zero from an absent key.
type LinkConfig struct {
	MatchThreshold  *float64         `yaml:"match_threshold"`
	StringMethod    string           `yaml:"string_method"`
	StringThreshold *float64         `yaml:"string_threshold"`
	DateSwapScore   float64          `yaml:"date_swap_score"`
	FoldCase        bool             `yaml:"fold_case"`
	Column          string           `yaml:"column"`
	Strategies      []StrategyConfig `yaml:"strategies"`
}

// StrategyConfig is one blocking pass. MatchVariables maps a column to its
// comparison kind.
type StrategyConfig struct {
	BlockVariable  string            `yaml:"block_variable"`
	MatchVariables map[string]string `yaml:"match_variables"`
}

// SortedMatchVariables returns the compared columns in name order, so
// feature order does not depend on map iteration.
func (s StrategyConfig) SortedMatchVariables() []string {
	names := make([]string, 0, len(s.MatchVariables))
	for n := range s.MatchVariables {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// OutputConfig names the SQLite sink.
type OutputConfig struct {
	DB    string `yaml:"db"`
	Table string `yaml:"table"`
}

// Load reads, validates and decodes the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parse(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse validates and decodes configuration YAML. Relative paths resolve
// against the working directory.
func Parse(data []byte) (*Config, error) {
	return parse("config.yaml", data)
}

func parse(filename string, data []byte) (*Config, error) {
	if err := Validate(filename, data); err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return nil, &Error{Code: ErrCodeSchema, Key: "yaml", Message: err.Error()}
	}
	return &cfg, nil
}

// Validate checks configuration YAML against the embedded CUE schema. The
// document is built from the YAML source, so a violation reports the line
// of the offending key.
func Validate(filename string, data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return &Error{Code: ErrCodeSchema, Key: "yaml", Message: err.Error()}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	f, err := cueyaml.Extract(filename, data)
	if err != nil {
		return &Error{Code: ErrCodeSchema, Key: "yaml", Message: err.Error()}
	}
	doc := ctx.BuildFile(f)
	if err := doc.Err(); err != nil {
		return formatCUEError(err, filename, &root)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err, filename, &root)
	}
	return nil
}

// formatCUEError converts the first CUE error into an *Error naming the
// config key (without the schema definition) and its line in the YAML
// source.
func formatCUEError(err error, filename string, root *yaml.Node) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: ErrCodeSchema, Key: "config", Message: err.Error()}
	}
	first := errs[0]
	path := configPath(first.Path())

	format, args := first.Msg()
	ce := &Error{
		Code:    ErrCodeSchema,
		Key:     strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
	}
	if ce.Key == "" {
		ce.Key = "config"
	}

	key, val := nodeAt(root, path)
	if strings.Contains(ce.Message, "empty disjunction") {
		ce.Message = "value is not one of the allowed values"
		if val != nil && val.Kind == yaml.ScalarNode {
			ce.Message = fmt.Sprintf("value %q is not one of the allowed values", val.Value)
		}
	}
	for _, pos := range cueerrors.Positions(first) {
		if pos.Filename() == filename {
			ce.Pos = pos
			break
		}
	}
	switch {
	case key != nil:
		ce.Line = key.Line
	case ce.Pos.IsValid():
		ce.Line = ce.Pos.Line()
	}
	return ce
}

// configPath drops the schema definition labels CUE puts in front of an
// error path and unquotes the rest.
func configPath(labels []string) []string {
	for len(labels) > 0 && strings.HasPrefix(labels[0], "#") {
		labels = labels[1:]
	}
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strings.Trim(l, `"`)
	}
	return out
}

// nodeAt walks path through a YAML document. It returns the deepest key
// node found on the way and the value node at path, which is nil when the
// path does not exist (e.g. a missing required key).
func nodeAt(root *yaml.Node, path []string) (key, val *yaml.Node) {
	n := root
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, nil
		}
		n = n.Content[0]
	}
	for _, sel := range path {
		var next *yaml.Node
		switch n.Kind {
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				if n.Content[i].Value == sel {
					key, next = n.Content[i], n.Content[i+1]
					break
				}
			}
		case yaml.SequenceNode:
			if i, err := strconv.Atoi(sel); err == nil && i >= 0 && i < len(n.Content) {
				key, next = n.Content[i], n.Content[i]
			}
		}
		if next == nil {
			return key, nil
		}
		n = next
	}
	return key, n
}

// Resolve returns path made absolute against the configuration directory.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.dir, path)
}

// Table returns the configuration of the named table.
func (c *Config) Table(name string) (TableConfig, error) {
	t, ok := c.Tables[name]
	if !ok {
		return TableConfig{}, &Error{
			Code:    ErrCodeMissingKey,
			Key:     "tables." + name,
			Message: "table is not configured",
		}
	}
	return t, nil
}

// HasTable reports whether the named table is configured.
func (c *Config) HasTable(name string) bool {
	_, ok := c.Tables[name]
	return ok
}
