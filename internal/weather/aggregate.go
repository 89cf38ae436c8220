package weather

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/i474232898/fogcast-backend/internal/serialize"
)

// WaterLevelSummary condenses the recent measurements of one gauge.
type WaterLevelSummary struct {
	Station      Station
	Latest       *Record
	Min          *decimal.Decimal
	Max          *decimal.Decimal
	Mean         *decimal.Decimal
	Count        int
	Measurements []Record
}

var summaryFields = []serialize.Field{
	serialize.F("station", serialize.Nested),
	serialize.F("latest", serialize.Nested),
	serialize.F("min", serialize.Decimal),
	serialize.F("max", serialize.Decimal),
	serialize.F("mean", serialize.Decimal),
	serialize.F("count", serialize.Integer),
	serialize.SequenceOf("measurements", serialize.Nested),
}

func (s WaterLevelSummary) Fields() []serialize.Field {
	return summaryFields
}

func (s WaterLevelSummary) FieldValue(name string) (any, bool) {
	switch name {
	case "station":
		return s.Station, true
	case "latest":
		return s.Latest, true
	case "min":
		return s.Min, true
	case "max":
		return s.Max, true
	case "mean":
		return s.Mean, true
	case "count":
		return s.Count, true
	case "measurements":
		return serialize.List(s.Measurements), true
	}
	return nil, false
}

// SummarizeWaterLevels orders records newest first and computes min, max and
// the mean rounded to two places. An empty input yields null statistics.
func SummarizeWaterLevels(station Station, records []Record) WaterLevelSummary {
	sorted := NewestFirst(records)
	summary := WaterLevelSummary{
		Station:      station,
		Count:        len(sorted),
		Measurements: sorted,
	}
	if len(sorted) == 0 {
		return summary
	}

	latest := sorted[0]
	minV, maxV := latest.Value(), latest.Value()
	sum := decimal.Zero
	for _, r := range sorted {
		v := r.Value()
		if v.LessThan(minV) {
			minV = v
		}
		if v.GreaterThan(maxV) {
			maxV = v
		}
		sum = sum.Add(v)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(sorted)))).Round(2)

	summary.Latest = &latest
	summary.Min = &minV
	summary.Max = &maxV
	summary.Mean = &mean
	return summary
}

// NewestFirst returns a copy of records sorted by date, newest first.
// Records with equal dates keep their input order.
func NewestFirst(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date().After(out[j].Date())
	})
	return out
}

// LatestByName keeps the newest record per name, in order of first appearance.
func LatestByName(records []Record) []Record {
	index := make(map[string]int)
	var out []Record
	for _, r := range records {
		i, ok := index[r.Name()]
		if !ok {
			index[r.Name()] = len(out)
			out = append(out, r)
			continue
		}
		if r.Date().After(out[i].Date()) {
			out[i] = r
		}
	}
	return out
}
