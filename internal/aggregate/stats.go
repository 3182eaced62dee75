package aggregate

import (
	"fmt"
	"math"
	"sort"
)

// stats summarizes the named fields over record items: count, sum,
// mean, min, and max always; median and sample standard deviation when
// at least two values exist. A field with no numeric values reports
// count=0 plus an explanatory error inside its entry without failing
// the call.
func stats(items []any, fields []string) map[string]any {
	fieldStats := make(map[string]any, len(fields))

	for _, field := range fields {
		values := collectNumeric(items, field)
		if len(values) == 0 {
			fieldStats[field] = map[string]any{
				"count": 0,
				"error": fmt.Sprintf("no numeric values for field %q", field),
			}
			continue
		}
		fieldStats[field] = summarize(values)
	}

	return map[string]any{"fields": fieldStats}
}

// collectNumeric gathers present, numeric, non-boolean values of the
// field across record items.
func collectNumeric(items []any, field string) []float64 {
	values := make([]float64, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		raw, ok := record[field]
		if !ok {
			continue
		}
		if v, ok := numericValue(raw); ok {
			values = append(values, v)
		}
	}
	return values
}

// numericValue converts a numeric value to float64. Booleans are
// explicitly not numbers here.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func summarize(values []float64) map[string]any {
	count := len(values)
	sum := 0.0
	min := values[0]
	max := values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(count)

	entry := map[string]any{
		"count": count,
		"sum":   sum,
		"mean":  mean,
		"min":   min,
		"max":   max,
	}

	if count >= 2 {
		entry["median"] = median(values)
		entry["stdev"] = sampleStdev(values, mean)
	}

	return entry
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// sampleStdev is the n-1 standard deviation.
func sampleStdev(values []float64, mean float64) float64 {
	var sumSquares float64
	for _, v := range values {
		d := v - mean
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}
