// Package report turns raw analytics rows into paged display tables.
//
// Everything here is pure: aggregation, table construction and page
// transitions take values and return values, so the dashboard can drive
// them from HTTP commands without holding hidden state.
package report

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// MetricRow is one row returned by an analytics query. All fields but the
// last are dimension values; the last is the metric.
type MetricRow []string

// Metric returns the numeric value of the row's last field.
// Missing or non-numeric values count as zero.
func (r MetricRow) Metric() int64 {
	if len(r) == 0 {
		return 0
	}
	return ParseMetric(r[len(r)-1])
}

// AggregatedRow is a key with the running total of every row merged into it.
type AggregatedRow struct {
	Key   string
	Total int64
}

// MarshalJSON encodes the row as [key, total], the shape the export expects.
func (a AggregatedRow) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.Key, a.Total})
}

// Cells returns the row as display values.
func (a AggregatedRow) Cells() []string {
	return []string{a.Key, strconv.FormatInt(a.Total, 10)}
}

// KeyFunc picks the aggregation key out of a row.
type KeyFunc func(MetricRow) string

// FieldKey keys rows on field i. Rows too short to have the field share the
// empty key.
func FieldKey(i int) KeyFunc {
	return func(r MetricRow) string {
		if i < 0 || i >= len(r) {
			return ""
		}
		return r[i]
	}
}

// PathKey keys ga:hostname,ga:pagePath rows on the path alone, so the same
// page served under several hostnames (www vs bare domain) is counted once.
// Distinct hosts sharing a path are merged as well.
var PathKey = FieldKey(1)

// Aggregate merges rows sharing a key and sums their metrics. Output order is
// the order in which each key is first seen. Totals saturate at the int64
// bounds instead of wrapping.
func Aggregate(rows []MetricRow, key KeyFunc) []AggregatedRow {
	out := make([]AggregatedRow, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, r := range rows {
		k := key(r)
		if i, ok := index[k]; ok {
			out[i].Total = addSaturating(out[i].Total, r.Metric())
			continue
		}
		index[k] = len(out)
		out = append(out, AggregatedRow{Key: k, Total: r.Metric()})
	}
	return out
}

func addSaturating(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// AggregatedCells converts aggregated rows into table rows.
func AggregatedCells(rows []AggregatedRow) [][]string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = r.Cells()
	}
	return cells
}

// ParseMetric reads the leading integer of s, ignoring surrounding space.
// "12.7" is 12, "7 views" is 7, anything without leading digits is 0.
func ParseMetric(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Rows converts provider rows into MetricRows without copying the fields.
func Rows(raw [][]string) []MetricRow {
	rows := make([]MetricRow, len(raw))
	for i, r := range raw {
		rows[i] = MetricRow(r)
	}
	return rows
}
