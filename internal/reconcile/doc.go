// Package reconcile collapses conflicting person-level records into one
// consistent record per person.
//
// Conflicts are resolved per field category:
//   - time fields: the midpoint when the observations span less than a
//     year, otherwise null
//   - boolean fields: the maximum, so "ever true" wins
//   - numeric code fields: null, since a code cannot be averaged
//
// A single non-null value among nulls always wins. Dates of birth get an
// extra plausibility rule (ResolveDOB) that depends on enrollment dates.
package reconcile
