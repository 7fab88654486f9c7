package codec

import (
	"fmt"
	"strings"

	"github.com/roach88/leakguard/internal/engine"
)

// SegmentError reports one record that Decode would skip.
type SegmentError struct {
	// Index is the zero-based position among non-empty records.
	Index int `json:"index"`

	// Offset is the byte offset of the record in the document.
	Offset int `json:"offset"`

	Record string `json:"record"`
	Reason string `json:"reason"`
}

func (e SegmentError) Error() string {
	return fmt.Sprintf("record %d at offset %d %q: %s", e.Index, e.Offset, e.Record, e.Reason)
}

// Validate reports every record of document that Decode would drop,
// including records past engine.MaxCriteria. A nil result means Decode on
// an empty engine keeps every record.
func Validate(document string) []SegmentError {
	var errs []SegmentError

	index, offset, accepted := 0, 0, 0
	for _, segment := range strings.Split(document, string(RecordSep)) {
		start := offset
		offset += len(segment) + 1
		if segment == "" {
			continue
		}

		if _, err := decodeRecord(segment); err != nil {
			errs = append(errs, SegmentError{
				Index:  index,
				Offset: start,
				Record: segment,
				Reason: err.Error(),
			})
		} else if accepted++; accepted > engine.MaxCriteria {
			errs = append(errs, SegmentError{
				Index:  index,
				Offset: start,
				Record: segment,
				Reason: fmt.Sprintf("exceeds capacity of %d criteria", engine.MaxCriteria),
			})
		}
		index++
	}
	return errs
}
