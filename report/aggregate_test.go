package report

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"testing"
)

func rows(raw ...[]string) []MetricRow {
	out := make([]MetricRow, len(raw))
	for i, r := range raw {
		out[i] = MetricRow(r)
	}
	return out
}

func TestAggregateFirstSeenOrder(t *testing.T) {
	in := rows(
		[]string{"a", "p1", "5"},
		[]string{"b", "p2", "3"},
		[]string{"c", "p1", "2"},
	)
	got := Aggregate(in, FieldKey(1))
	want := []AggregatedRow{{Key: "p1", Total: 7}, {Key: "p2", Total: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Aggregate = %v, want %v", got, want)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil, PathKey)
	if got == nil || len(got) != 0 {
		t.Fatalf("Aggregate(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestAggregateSingleRow(t *testing.T) {
	got := Aggregate(rows([]string{"example.com", "/about/", "42"}), PathKey)
	want := []AggregatedRow{{Key: "/about/", Total: 42}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Aggregate = %v, want %v", got, want)
	}
}

func TestAggregateAdjacentAndSplitDuplicates(t *testing.T) {
	adjacent := rows(
		[]string{"h", "/a", "1"},
		[]string{"h", "/a", "2"},
		[]string{"h", "/b", "4"},
	)
	split := rows(
		[]string{"h", "/a", "1"},
		[]string{"h", "/b", "4"},
		[]string{"h", "/a", "2"},
	)
	a := Aggregate(adjacent, PathKey)
	b := Aggregate(split, PathKey)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("adjacent %v != split %v", a, b)
	}
}

func TestAggregateMalformedRows(t *testing.T) {
	in := rows(
		[]string{"h", "/a", "3"},
		[]string{"h", "/a", "not-a-number"},
		[]string{"h", "/b", ""},
		[]string{"h"},
		[]string{},
		[]string{"h", "/a", "12.9"},
	)
	got := Aggregate(in, PathKey)
	want := []AggregatedRow{
		{Key: "/a", Total: 15},
		{Key: "/b", Total: 0},
		{Key: "", Total: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Aggregate = %v, want %v", got, want)
	}
}

func TestAggregateConservesTotal(t *testing.T) {
	alphabet := []string{"/a", "/b", "/c"}
	var in []MetricRow
	var sum int64
	for i := 0; i < 40; i++ {
		v := int64(i*7%11 + 1)
		sum += v
		in = append(in, MetricRow{"host", alphabet[i%len(alphabet)], strconv.FormatInt(v, 10)})
	}
	var total int64
	for _, r := range Aggregate(in, PathKey) {
		total += r.Total
	}
	if total != sum {
		t.Fatalf("aggregated total = %d, want %d", total, sum)
	}
}

func TestAggregateSaturates(t *testing.T) {
	max := strconv.FormatInt(math.MaxInt64, 10)
	min := strconv.FormatInt(math.MinInt64, 10)
	in := rows(
		[]string{"h", "/big", max},
		[]string{"h", "/big", max},
		[]string{"h", "/small", min},
		[]string{"h", "/small", "-1"},
		[]string{"h", "/back", max},
		[]string{"h", "/back", "-5"},
	)
	got := Aggregate(in, PathKey)
	want := []AggregatedRow{
		{Key: "/big", Total: math.MaxInt64},
		{Key: "/small", Total: math.MinInt64},
		{Key: "/back", Total: math.MaxInt64 - 5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Aggregate = %v, want %v", got, want)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	in := rows(
		[]string{"x", "/k", "3"},
		[]string{"y", "/j", "5"},
		[]string{"z", "/k", "1"},
	)
	first := Aggregate(in, PathKey)
	second := Aggregate(in, PathKey)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("runs differ: %v vs %v", first, second)
	}
}

func TestAggregateMergeIsAssociative(t *testing.T) {
	split := rows(
		[]string{"h", "/a", "2"},
		[]string{"h", "/b", "1"},
		[]string{"h", "/a", "5"},
	)
	merged := rows(
		[]string{"h", "/a", "7"},
		[]string{"h", "/b", "1"},
	)
	if a, b := Aggregate(split, PathKey), Aggregate(merged, PathKey); !reflect.DeepEqual(a, b) {
		t.Fatalf("split %v != merged %v", a, b)
	}
}

// Keying on the path alone folds different hostnames into one row. This is
// kept on purpose: www and bare-domain hits are the same page.
func TestPathKeyMergesHostnames(t *testing.T) {
	in := rows(
		[]string{"example.com", "/", "10"},
		[]string{"www.example.com", "/", "4"},
		[]string{"blog.other.org", "/", "1"},
	)
	got := Aggregate(in, PathKey)
	if len(got) != 1 || got[0].Total != 15 {
		t.Fatalf("Aggregate = %v, want a single / row with 15", got)
	}
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"42", 42},
		{" 7 ", 7},
		{"12.7", 12},
		{"-3", -3},
		{"7 views", 7},
		{"", 0},
		{"abc", 0},
		{"-", 0},
		{"99999999999999999999999", 0},
	}
	for _, tt := range tests {
		if got := ParseMetric(tt.in); got != tt.want {
			t.Errorf("ParseMetric(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAggregatedRowJSON(t *testing.T) {
	b, err := json.Marshal([]AggregatedRow{{Key: "/a", Total: 7}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `[["/a",7]]` {
		t.Errorf("json = %s, want [[\"/a\",7]]", b)
	}
}
