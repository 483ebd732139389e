// Package table provides the tabular data model shared by every stage of the
// pipeline.
//
// This package contains the value types and table operations only. All other
// internal packages import table; table imports nothing internal. This keeps
// the data model as the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Values are a sealed set: Null, String, Int, Float, Bool, Time
//   - Missing data is always Null, never a zero value
//   - Operations that change a table's shape return a new table
//   - Row order is preserved by every operation (first occurrence wins
//     ordering for groups, keep-last for deduplication)
package table
