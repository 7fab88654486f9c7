package codec

import (
	"errors"
	"strings"
)

var (
	errEmptyRecord     = errors.New("empty record")
	errUnknownTag      = errors.New("unknown tag")
	errFieldCount      = errors.New("wrong field count")
	errMissingTerminal = errors.New("record is not comma-terminated")
	errBadNumber       = errors.New("non-numeric field")
)

// splitRecords splits a document on '|'. Empty segments, including the one
// after the trailing separator, are dropped.
func splitRecords(document string) []string {
	if document == "" {
		return nil
	}
	parts := strings.Split(document, string(RecordSep))
	records := parts[:0]
	for _, p := range parts {
		if p != "" {
			records = append(records, p)
		}
	}
	return records
}

// splitFields splits a record into exactly n comma-terminated fields.
// "T,200,60," yields [T 200 60]; "T,200,60" and "T,200,60,1," are rejected.
func splitFields(record string, n int) ([]string, error) {
	if !strings.HasSuffix(record, string(FieldSep)) {
		return nil, errMissingTerminal
	}
	fields := strings.Split(strings.TrimSuffix(record, string(FieldSep)), string(FieldSep))
	if len(fields) != n {
		return nil, errFieldCount
	}
	return fields, nil
}
