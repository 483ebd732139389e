// Package store writes pipeline output to SQLite.
//
// The store holds:
//   - Output tables: one SQLite table per WriteTable call, replaced on
//     every write, with the cell kind of each column in table_columns
//   - Runs: a record per pipeline run with its JSON summary and the row
//     counts of every stage
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - user_version: the schema version. Open refuses a database stamped
//     with a newer version than this build knows (ErrSchemaVersion)
//
// All queries order their results explicitly (rowid for table rows, id
// for runs, seq for stages) so reads are deterministic.
package store
