package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/table"
)

func loadMergeConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join("testdata", "merge.yaml"))
	require.NoError(t, err)
	return cfg
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMergeTables(t *testing.T) {
	merged, summary, err := MergeTables(context.Background(), loadMergeConfig(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ProjectEntryID", "PersonalID", "ProjectID", "HouseholdID", "EntryDate",
		"ExitID", "ExitDate", "DestinationNumeric", "DestinationDescription",
		"DestinationGroup", "DestinationSuccess", "Subsidy",
		"DOB", "VeteranStatus", "Gender", "FirstName",
		"physical_entry", "developmental_entry", "physical_exit", "developmental_exit",
		"TotalMonthlyIncome_entry", "TotalMonthlyIncome_exit",
		"ProjectName", "ProjectNumeric", "ProjectType",
	}, merged.Columns())

	// Household H2 has a single member and is dropped; rows are sorted by
	// household with file order kept inside a household.
	assertCells(t, merged, "ProjectEntryID", 2, 1, 4, 5)
	assertCells(t, merged, "PersonalID", 11, 10, 10, 13)
	assertCells(t, merged, "HouseholdID", "H1", "H1", "H3", "H3")
	assertCells(t, merged, "EntryDate", date(2012, 3, 1), date(2012, 3, 1), date(2013, 1, 10), date(2013, 1, 10))

	assertCells(t, merged, "ExitID", "E2", "E1", "E3", nil)
	assertCells(t, merged, "DestinationNumeric", 99, 10, 1, nil)
	assertCells(t, merged, "DestinationDescription", nil, "Rental by client no subsidy", "Emergency shelter", nil)
	assertCells(t, merged, "Subsidy", nil, false, false, nil)

	// Person 11 was born after enrolling; person 13's dates of birth are
	// two months apart and resolve to the midpoint.
	assertCells(t, merged, "DOB", nil, date(1980, 1, 1), date(1980, 1, 1), date(1990, 3, 2))
	assertCells(t, merged, "VeteranStatus", 1, 1, 1, 0)
	assertCells(t, merged, "Gender", 2, 1, 1, nil)
	assertCells(t, merged, "FirstName", "Bob", "Ann", "Ann", "Di")

	assertCells(t, merged, "physical_entry", nil, 1, 0, nil)
	assertCells(t, merged, "physical_exit", nil, 0, nil, nil)
	assertCells(t, merged, "developmental_entry", 1, nil, nil, nil)

	assertCells(t, merged, "TotalMonthlyIncome_entry", 0, 250, nil, nil)
	assertCells(t, merged, "TotalMonthlyIncome_exit", nil, 300, 75.5, nil)

	assertCells(t, merged, "ProjectType", "Emergency Shelter", "Emergency Shelter",
		"PH - Permanent Supportive Housing", "PH - Permanent Supportive Housing")

	assert.Equal(t, []TableCount{
		{"enrollment", 4},
		{"exit", 3},
		{"client", 4},
		{"disabilities", 3},
		{"income", 3},
		{"project", 2},
	}, summary.Tables)
	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, 1, summary.BadDOB)
	assert.Equal(t, []string{
		"client: found 1 entries with bad dates of birth",
		"disabilities: skipped 1 rows with an unmapped disability type",
	}, summary.Warnings)
}

func TestMergeTablesKeepsSingletonsWithoutGroups(t *testing.T) {
	cfg := loadMergeConfig(t)
	cfg.Groups = false

	merged, _, err := MergeTables(context.Background(), cfg)
	require.NoError(t, err)
	assertCells(t, merged, "ProjectEntryID", 2, 1, 3, 4, 5)
}

func TestMergeTablesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := MergeTables(ctx, loadMergeConfig(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeTablesConfigErrors(t *testing.T) {
	cfg := loadMergeConfig(t)
	enrollment := cfg.Tables["enrollment"]
	extra := make(map[string]any)
	for k, v := range enrollment.Extra {
		if k != "group_id_column" {
			extra[k] = v
		}
	}
	enrollment.Extra = extra
	cfg.Tables["enrollment"] = enrollment

	_, _, err := MergeTables(context.Background(), cfg)
	var ce *config.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, config.ErrCodeMissingKey, ce.Code)
	assert.Equal(t, "enrollment", ce.Table)
	assert.Equal(t, "group_id_column", ce.Key)
}

func TestJoinOnDifferentKeyNames(t *testing.T) {
	left, err := table.FromRows([]string{"EnID", "A"}, [][]any{{1, "x"}, {2, "y"}})
	require.NoError(t, err)
	right, err := table.FromRows([]string{"EnrollmentID", "B"}, [][]any{{2, "z"}})
	require.NoError(t, err)

	out, err := JoinOn(left, right, "EnID", "EnrollmentID")
	require.NoError(t, err)
	assert.Equal(t, []string{"EnID", "A", "B"}, out.Columns())
	assertCells(t, out, "B", nil, "z")
}
