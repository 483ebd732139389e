// Package ingest reads HMIS extract tables from CSV partitions and merges
// them into one table with a row per person per program enrollment.
//
// Every table is read through ReadTable, which concatenates the partitions
// of a Manifest and applies the common clean-up configured for the table:
// dropped columns, keep-last deduplication, unknown categorical codes and
// date parsing. The per-table readers layer the table-specific steps on
// top, and MergeTables left-joins them onto the enrollment table.
package ingest
