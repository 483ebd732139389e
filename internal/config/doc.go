// Package config loads and validates pipeline configuration.
//
// A configuration file is YAML. It is validated twice: once against the
// embedded CUE schema (schema.cue), which checks types, enumerations and
// ranges, and once by strict decoding into Config, which rejects unknown
// top-level keys. Per-table keys that only some table readers understand
// stay in TableConfig.Extra until a reader claims them with Extract.
//
// Every configuration failure is an *Error naming the offending key.
package config
