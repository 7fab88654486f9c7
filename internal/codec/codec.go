package codec

import (
	"math"
	"strconv"
	"strings"

	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
)

// Format delimiters and tags.
const (
	FieldSep  = ','
	RecordSep = '|'

	TagFlowRate = "T"
	TagProbe    = "P"
)

// thresholdScale keeps two decimal digits of the flow rate threshold.
const thresholdScale = 100

// EncodeCriterion serializes one criterion as a comma-terminated record.
//
//	flow rate: T,<threshold*100 truncated>,<min duration seconds>,
//	probe:     P,<probe id>,
//
// The threshold is lossy: digits past the second decimal are dropped.
// A criterion without a kind encodes as "".
func EncodeCriterion(c engine.Criterion) string {
	var b strings.Builder
	appendCriterion(&b, c)
	return b.String()
}

func appendCriterion(b *strings.Builder, c engine.Criterion) {
	switch c.Kind() {
	case engine.KindFlowRate:
		cfg := c.FlowRate()
		b.WriteString(TagFlowRate)
		b.WriteByte(FieldSep)
		b.WriteString(strconv.FormatInt(scaleThreshold(cfg.RateThreshold), 10))
		b.WriteByte(FieldSep)
		b.WriteString(strconv.FormatInt(int64(cfg.MinDuration), 10))
		b.WriteByte(FieldSep)

	case engine.KindProbe:
		b.WriteString(TagProbe)
		b.WriteByte(FieldSep)
		b.WriteString(strconv.FormatUint(uint64(c.Probe().ProbeID), 10))
		b.WriteByte(FieldSep)
	}
}

// scaleThreshold multiplies by 100 and truncates toward zero.
//
// The truncation is done on the shortest decimal form of the float32, not on
// a binary product: float32(0.53)*100 is 52.99999 and would encode as 52.
// Working in decimal guarantees that a threshold decoded from N re-encodes
// as N. NaN encodes as 0; out of range values saturate.
func scaleThreshold(threshold float32) int64 {
	f := float64(threshold)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64/thresholdScale:
		return math.MaxInt64
	case f <= math.MinInt64/thresholdScale:
		return math.MinInt64
	}

	text := strconv.FormatFloat(f, 'f', -1, 32)
	whole, frac, _ := strings.Cut(text, ".")
	frac = (frac + "00")[:2]

	n, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// DecodeCriterion parses a single comma-terminated record.
// Returns false for an unknown tag, a wrong field count, a missing
// terminator or a non-numeric field. The decoded criterion has fresh state.
func DecodeCriterion(record string) (engine.Criterion, bool) {
	c, err := decodeRecord(record)
	return c, err == nil
}

func decodeRecord(record string) (engine.Criterion, error) {
	if record == "" {
		return engine.Criterion{}, errEmptyRecord
	}

	switch record[:1] {
	case TagFlowRate:
		fields, err := splitFields(record, 3)
		if err != nil {
			return engine.Criterion{}, err
		}
		if fields[0] != TagFlowRate {
			return engine.Criterion{}, errUnknownTag
		}
		scaled, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return engine.Criterion{}, errBadNumber
		}
		duration, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return engine.Criterion{}, errBadNumber
		}
		threshold := float32(float64(scaled) / thresholdScale)
		return engine.NewFlowRateCriterion(threshold, ir.Seconds(duration)), nil

	case TagProbe:
		fields, err := splitFields(record, 2)
		if err != nil {
			return engine.Criterion{}, err
		}
		if fields[0] != TagProbe {
			return engine.Criterion{}, errUnknownTag
		}
		id, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil {
			return engine.Criterion{}, errBadNumber
		}
		return engine.NewProbeCriterion(uint8(id)), nil

	default:
		return engine.Criterion{}, errUnknownTag
	}
}

// Encode serializes every criterion of e in priority order. Each record is
// followed by '|', including the last one. An empty engine encodes as "".
func Encode(e *engine.Engine) string {
	var b strings.Builder
	for i := 0; i < e.Len(); i++ {
		c, _ := e.At(i)
		appendCriterion(&b, c)
		b.WriteByte(RecordSep)
	}
	return b.String()
}

// Decode appends the criteria in document to e.
//
// Decoding is best effort: records with an unknown tag or a malformed body
// are skipped silently, as are records that do not fit in e. Criteria
// already in e are kept, and nothing is rolled back. Callers that need
// strict validation must run Validate first.
//
// Returns the number of criteria added.
func Decode(e *engine.Engine, document string) int {
	added := 0
	for _, record := range splitRecords(document) {
		c, err := decodeRecord(record)
		if err != nil {
			continue
		}
		if e.AddCriterion(c) != nil {
			continue
		}
		added++
	}
	return added
}

// DecodeAll decodes every well-formed record of document, without the
// capacity limit of an engine.
func DecodeAll(document string) []engine.Criterion {
	var out []engine.Criterion
	for _, record := range splitRecords(document) {
		if c, err := decodeRecord(record); err == nil {
			out = append(out, c)
		}
	}
	return out
}
