package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "king.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "king", cfg.Name)
	assert.Equal(t, []string{"2012", "2013"}, cfg.Paths)
	assert.True(t, cfg.Groups)
	assert.Equal(t, filepath.Join("testdata", "destinations.csv"), cfg.Resolve(cfg.DestinationMap))

	client, err := cfg.Table("client")
	require.NoError(t, err)
	assert.Equal(t, "Client.csv", client.File)
	assert.Equal(t, []string{"DOB"}, client.TimeVar)
	assert.Equal(t, []string{"boolean", "dob_column", "numeric_code", "person_id"}, client.ExtraKeys())

	dis, err := cfg.Table("disabilities")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"2012": "data/2012/Disabilities.csv",
		"2013": "data/2013/Disabilities.csv",
	}, dis.Files)

	require.NotNil(t, cfg.Cluster)
	assert.Equal(t, "hierarchical", cfg.Cluster.Method)

	require.NotNil(t, cfg.Link)
	require.NotNil(t, cfg.Link.MatchThreshold)
	assert.Equal(t, 2.0, *cfg.Link.MatchThreshold)
	assert.Nil(t, cfg.Link.StringThreshold)
	require.Len(t, cfg.Link.Strategies, 1)
	assert.Equal(t, []string{"DOB", "FirstName", "SSN"}, cfg.Link.Strategies[0].SortedMatchVariables())

	_, err = cfg.Table("income")
	assert.True(t, IsMissingKey(err))
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown top-level key", "bogus: 1\n"},
		{"unknown cluster method", "cluster:\n  individual_var: id\n  method: kmeans\n"},
		{"missing individual var", "cluster:\n  group_var: hh\n"},
		{"negative time delta", "cluster:\n  individual_var: id\n  time_delta: -1\n"},
		{"empty strategy list", "link:\n  strategies: []\n"},
		{"unknown comparison", "link:\n  strategies:\n    - block_variable: a\n      match_variables: {a: phonetic}\n"},
		{"string threshold out of range", "link:\n  string_threshold: 1.5\n  strategies:\n    - block_variable: a\n      match_variables: {a: string}\n"},
		{"time_var not a list", "tables:\n  client:\n    time_var: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var ce *Error
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, ErrCodeSchema, ce.Code)
		})
	}
}

func TestSchemaViolationNamesKeyAndLine(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		key     string
		line    int
		message string
	}{
		{
			name:    "unknown cluster method",
			yaml:    "name: x\ncluster:\n  individual_var: id\n  method: kmeans\n",
			key:     "cluster.method",
			line:    4,
			message: "kmeans",
		},
		{
			name: "missing individual var",
			yaml: "name: x\ncluster:\n  group_var: g\n",
			key:  "cluster.individual_var",
			line: 2,
		},
		{
			name: "time_var not a list",
			yaml: "tables:\n  client:\n    time_var: 3\n",
			key:  "tables.client.time_var",
			line: 3,
		},
		{
			name: "unknown top-level key",
			yaml: "name: x\nbogus: 1\n",
			key:  "bogus",
			line: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var ce *Error
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.key, ce.Key)
			assert.Equal(t, tt.line, ce.Line)
			assert.NotContains(t, ce.Message, "empty disjunction")
			assert.Contains(t, ce.Message, tt.message)
			assert.Contains(t, err.Error(), fmt.Sprintf("line %d: %s:", tt.line, tt.key))
		})
	}
}

func TestLoadReportsLineInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n\ncluster:\n  individual_var: id\n  method: kmeans\n"), 0o644))

	_, err := Load(path)
	var ce *Error
	require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
	assert.Equal(t, "cluster.method", ce.Key)
	assert.Equal(t, 5, ce.Line)
}

func TestParseMinimal(t *testing.T) {
	cfg, err := Parse([]byte("cluster:\n  individual_var: PersonalID\n  group_var: HouseholdID\n"))
	require.NoError(t, err)
	assert.Equal(t, "PersonalID", cfg.Cluster.IndividualVar)
	assert.Nil(t, cfg.Link)
	assert.False(t, cfg.HasTable("client"))
}

func TestExtract(t *testing.T) {
	tc := TableConfig{
		File: "Client.csv",
		Extra: map[string]any{
			"person_id":   "PersonalID",
			"boolean":     []any{"Veteran", "Disabled"},
			"entry_stage": 1,
			"type_column": []any{"A", "B"},
			"type_names":  map[string]any{"5": "physical", "6": "developmental"},
			"unrelated":   true,
		},
	}

	ex, rest := tc.Extract("client", "person_id", "boolean", "entry_stage", "type_column", "type_names", "absent")

	assert.Equal(t, []string{"unrelated"}, rest.ExtraKeys())
	assert.Equal(t, "Client.csv", rest.File)
	assert.Len(t, tc.Extra, 6, "receiver must not be modified")
	assert.False(t, ex.Has("absent"))

	s, err := ex.String("person_id")
	require.NoError(t, err)
	assert.Equal(t, "PersonalID", s)

	list, err := ex.Strings("boolean")
	require.NoError(t, err)
	assert.Equal(t, []string{"Veteran", "Disabled"}, list)

	n, err := ex.Int("entry_stage")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	names, err := ex.CodeNames("type_names")
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{5: "physical", 6: "developmental"}, names)

	_, err = ex.String("type_column")
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrCodeTypeMismatch, ce.Code)
	assert.Equal(t, "client", ce.Table)
	assert.Contains(t, ce.Error(), "client.type_column")

	_, err = ex.String("absent")
	assert.True(t, IsMissingKey(err))

	def, err := ex.OptionalString("absent", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", def)
}

func TestErrorFormat(t *testing.T) {
	err := MissingKey("time_var")
	assert.Equal(t, "[E201] time_var: required key is missing", err.Error())

	err.Table = "client"
	assert.Equal(t, "[E201] client.time_var: required key is missing", err.Error())

	err.Line = 7
	assert.Equal(t, "[E201] line 7: client.time_var: required key is missing", err.Error())

	iv := InvalidValue("method", "unknown method %q", "kmeans")
	assert.Equal(t, ErrCodeInvalidValue, iv.Code)
	assert.False(t, IsMissingKey(iv))
	assert.True(t, IsConfigError(iv))
}
