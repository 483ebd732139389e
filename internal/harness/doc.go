// Package harness runs YAML scenarios against the clustering, linkage and
// reconciliation packages.
//
// # Scenario Format
//
//	name: households_bridged
//	description: "Shared households join individuals into one cluster"
//	operation: cluster            # cluster | link | reconcile | cooccurrence
//	input:
//	  columns: [individual, group]
//	  rows:
//	    - [1, 1]
//	    - [2, 1]
//	  time_columns: []            # columns parsed as dates
//	config:                       # the operation's config section
//	  individual_var: individual
//	  group_var: group
//	expect:
//	  cluster: [1, 1]
//	assertions:
//	  - type: final_state
//	    where: { individual: 2 }
//	    expect: { cluster: 1 }
//
// cooccurrence scenarios check expect_matrix instead of (or as well as)
// output columns; their output table lists the non-zero edges. A scenario
// with expect_error passes only when the run fails with a matching error.
//
// # Assertion Types
//
//   - column_equals: an output column holds exactly the given cells
//   - final_state: stored rows matching where hold the expected cells
//   - row_count: the output has exactly count rows
//   - warning_contains: some run warning contains text
//
// # Deterministic Testing
//
// Every run uses a fixed run id (scenario run_id or
// testutil.DefaultRunID) and a fresh in-memory SQLite store, so the
// golden snapshots written by RunWithGolden are reproducible.
package harness
