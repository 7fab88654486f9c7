// Package codec converts an engine's criteria to and from a compact text
// document suitable for small persistent storage.
//
// A document is a sequence of records, each terminated by '|':
//
//	T,200,60,|P,42,|
//
// A record is a type tag followed by comma-terminated fields. "T" is a
// flow rate criterion (threshold in hundredths of L/min, min duration in
// seconds); "P" is a probe criterion (probe id). Only configuration is
// encoded; decoded criteria start with fresh state.
//
// Decoding is permissive. Malformed or unknown records are skipped so that
// a partially corrupted document still restores what it can. Validate
// reports what would be skipped.
package codec
