package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/eringen/pubdash/analytics"
	"github.com/eringen/pubdash/report"
)

// fakeQuerier answers by the first requested dimension.
type fakeQuerier struct {
	mu      sync.Mutex
	rows    map[string][][]string
	errs    map[string]error
	block   map[string]chan struct{}
	queries []analytics.Query
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		rows: map[string][][]string{
			"ga:date": {{"20260301", "0000", "4"}, {"20260302", "0001", "6"}},
			"ga:hostname": {
				{"example.com", "/", "10"},
				{"example.com", "/blog/", "6"},
				{"www.example.com", "/", "3"},
			},
			"ga:fullReferrer": {{"google", "9"}, {"(direct)", "5"}},
		},
		errs:  map[string]error{},
		block: map[string]chan struct{}{},
	}
}

func (f *fakeQuerier) Query(ctx context.Context, q analytics.Query) (*analytics.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	dim := q.Dimensions[0]
	wait := f.block[dim]
	rows, err := f.rows[dim], f.errs[dim]
	f.mu.Unlock()
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &analytics.Result{Rows: rows, TotalResults: len(rows)}, nil
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Infof(string, ...interface{}) {}
func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, format)
	l.mu.Unlock()
}

var testSite = Site{ID: 2, Name: "Main", ViewID: "ga:123"}

func TestRefreshRoutesEachRegion(t *testing.T) {
	fq := newFakeQuerier()
	c := New(testSite, fq)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	pages, _ := c.State(Pages)
	if pages.Status != Ready {
		t.Fatalf("pages status = %v", pages.Status)
	}
	want := [][]string{{"/", "13"}, {"/blog/", "6"}}
	for i, row := range pages.Table.Rows {
		if strings.Join(row.Cells, ",") != strings.Join(want[i], ",") {
			t.Errorf("pages row %d = %v, want %v", i, row.Cells, want[i])
		}
	}
	if pages.Table.Headers[0] != "Page URL" {
		t.Errorf("pages headers = %v", pages.Table.Headers)
	}

	refs, _ := c.State(Referrers)
	if refs.Table.Len() != 2 || refs.Table.Rows[0].Cells[0] != "google" {
		t.Errorf("referrers table = %+v", refs.Table)
	}

	sessions, _ := c.State(Sessions)
	if sessions.Chart == nil || len(sessions.Chart.Data.Labels) != 2 {
		t.Fatalf("sessions chart = %+v", sessions.Chart)
	}
	if sessions.Chart.Data.Labels[0] != "Mar 1, 2026" || sessions.Chart.Data.Datasets[0].Data[1] != 6 {
		t.Errorf("chart = %+v", sessions.Chart.Data)
	}
	if !c.ExportReady() {
		t.Error("export should be ready after refresh")
	}
}

func TestQueryParameters(t *testing.T) {
	c := New(testSite, newFakeQuerier(), WithMaxResults(10))
	if err := c.SetRange(DateRange{Start: "2026-01-01", End: "2026-01-31"}); err != nil {
		t.Fatalf("SetRange failed: %v", err)
	}
	q, err := c.Query(Pages)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if q.ViewID != "ga:123" || q.StartDate != "2026-01-01" || q.EndDate != "2026-01-31" {
		t.Errorf("query = %+v", q)
	}
	if strings.Join(q.Dimensions, ",") != "ga:hostname,ga:pagePath" || q.Sort[0] != "-ga:pageviews" || q.MaxResults != 10 {
		t.Errorf("pages query = %+v", q)
	}
	q, _ = c.Query(Sessions)
	if strings.Join(q.Dimensions, ",") != "ga:date,ga:nthDay" || q.Metrics[0] != "ga:sessions" {
		t.Errorf("sessions query = %+v", q)
	}
	if _, err := c.Query("bounces"); !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("err = %v, want ErrUnknownRegion", err)
	}
}

func TestSetRangeValidates(t *testing.T) {
	c := New(testSite, newFakeQuerier())
	if err := c.SetRange(DateRange{Start: "last week"}); !errors.Is(err, analytics.ErrInvalidDate) {
		t.Errorf("err = %v, want ErrInvalidDate", err)
	}
	if err := c.SetRange(DateRange{}); err != nil {
		t.Fatalf("empty range should take defaults: %v", err)
	}
	if c.Range() != DefaultRange() {
		t.Errorf("Range = %+v, want default", c.Range())
	}
}

func TestLoadRange(t *testing.T) {
	fq := newFakeQuerier()
	c := New(testSite, fq)
	if _, err := c.LoadRange(context.Background(), Pages, DateRange{End: "soon"}); !errors.Is(err, analytics.ErrInvalidDate) {
		t.Errorf("err = %v, want ErrInvalidDate", err)
	}
	st, err := c.LoadRange(context.Background(), Pages, DateRange{Start: "7daysAgo"})
	if err != nil {
		t.Fatalf("LoadRange failed: %v", err)
	}
	want := DateRange{Start: "7daysAgo", End: "today"}
	if st.Range != want || c.Range() != want {
		t.Errorf("state range = %+v, controller range = %+v", st.Range, c.Range())
	}
	fq.mu.Lock()
	defer fq.mu.Unlock()
	if len(fq.queries) != 1 || fq.queries[0].StartDate != "7daysAgo" {
		t.Errorf("queries = %+v", fq.queries)
	}
}

func TestRegionsCompleteIndependently(t *testing.T) {
	fq := newFakeQuerier()
	release := make(chan struct{})
	fq.block["ga:date"] = release
	c := New(testSite, fq)

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()

	// the two tables settle while the sessions query is still out
	waitFor(t, func() bool {
		p, _ := c.State(Pages)
		r, _ := c.State(Referrers)
		return p.Status == Ready && r.Status == Ready
	})
	if s, _ := c.State(Sessions); s.Status != Loading {
		t.Errorf("sessions status = %v, want loading", s.Status)
	}
	if c.ExportReady() {
		t.Error("export should wait for the query in flight")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if s, _ := c.State(Sessions); s.Status != Ready {
		t.Errorf("sessions status = %v, want ready", s.Status)
	}
}

// A failed query leaves its region marked failed and logged. Other regions
// still render.
func TestFailedQueryMarksRegion(t *testing.T) {
	fq := newFakeQuerier()
	fq.errs["ga:fullReferrer"] = &analytics.ServiceError{Code: 403, Message: "forbidden"}
	log := &recordingLogger{}
	c := New(testSite, fq, WithLogger(log))

	err := c.Refresh(context.Background())
	var se *analytics.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	refs, _ := c.State(Referrers)
	if refs.Status != Failed || refs.Err == nil {
		t.Errorf("referrers = %+v, want failed", refs)
	}
	if pages, _ := c.State(Pages); pages.Status != Ready {
		t.Errorf("pages status = %v, want ready", pages.Status)
	}
	if len(log.errors) != 1 {
		t.Errorf("logged %d errors, want 1", len(log.errors))
	}
	if c.Snapshot().Referrers != nil {
		t.Error("failed region should not appear in the snapshot")
	}
}

func TestFailedReloadDropsEarlierRows(t *testing.T) {
	fq := newFakeQuerier()
	c := New(testSite, fq)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	fq.mu.Lock()
	fq.errs["ga:fullReferrer"] = &analytics.ServiceError{Code: 403, Message: "forbidden"}
	fq.mu.Unlock()
	rng := DateRange{Start: "7daysAgo", End: "today"}
	if _, err := c.Dispatch(context.Background(), Command{Kind: RangeChanged, Range: rng}); err == nil {
		t.Fatal("expected the referrers failure")
	}

	refs, _ := c.State(Referrers)
	if refs.Status != Failed || refs.Table != nil {
		t.Errorf("referrers = %+v, want failed without a table", refs)
	}
	if _, err := c.Page(Referrers, 0); err == nil {
		t.Error("paging a failed region should fail")
	}
	b, err := c.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if string(doc["referrers"]) != "null" {
		t.Errorf("referrers = %s, want null", doc["referrers"])
	}
	if string(doc["pages"]) != `[["/",13],["/blog/",6]]` {
		t.Errorf("pages = %s", doc["pages"])
	}
}

func TestRangeChangeDropsRowsWhileLoading(t *testing.T) {
	fq := newFakeQuerier()
	c := New(testSite, fq)
	if _, err := c.Load(context.Background(), Referrers); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	release := make(chan struct{})
	fq.mu.Lock()
	fq.block["ga:fullReferrer"] = release
	fq.mu.Unlock()
	if err := c.SetRange(DateRange{Start: "7daysAgo", End: "today"}); err != nil {
		t.Fatalf("SetRange failed: %v", err)
	}
	done := make(chan struct{})
	go func() {
		c.Load(context.Background(), Referrers)
		close(done)
	}()
	waitFor(t, func() bool {
		st, _ := c.State(Referrers)
		return st.Status == Loading
	})

	st, _ := c.State(Referrers)
	if st.Table != nil {
		t.Error("rows of the previous range should be dropped")
	}
	if c.Snapshot().Referrers != nil {
		t.Error("snapshot still holds the previous range")
	}
	close(release)
	<-done
	if st, _ := c.State(Referrers); st.Status != Ready || st.Table.Len() != 2 {
		t.Errorf("referrers = %+v, want ready", st)
	}
}

func TestStaleLoadDoesNotOverwrite(t *testing.T) {
	fq := newFakeQuerier()
	slow := make(chan struct{})
	fq.block["ga:fullReferrer"] = slow
	c := New(testSite, fq)

	first := make(chan struct{})
	go func() {
		c.Load(context.Background(), Referrers)
		close(first)
	}()
	waitFor(t, func() bool {
		fq.mu.Lock()
		defer fq.mu.Unlock()
		return len(fq.queries) == 1
	})

	fq.mu.Lock()
	fq.block["ga:fullReferrer"] = nil
	fq.rows["ga:fullReferrer"] = [][]string{{"bing", "1"}}
	fq.mu.Unlock()
	if _, err := c.Load(context.Background(), Referrers); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	close(slow)
	<-first

	st, _ := c.State(Referrers)
	if st.Table.Rows[0].Cells[0] != "bing" {
		t.Errorf("referrers = %v, want the newer result", st.Table.Rows[0].Cells)
	}
}

func TestExportDocument(t *testing.T) {
	c := New(testSite, newFakeQuerier())
	if !c.Snapshot().Empty() {
		t.Fatal("new controller should have an empty snapshot")
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	b, err := c.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if string(doc["pages"]) != `[["/",13],["/blog/",6]]` {
		t.Errorf("pages = %s", doc["pages"])
	}
	if string(doc["referrers"]) != `[["google","9"],["(direct)","5"]]` {
		t.Errorf("referrers = %s", doc["referrers"])
	}
	if _, ok := doc["sessions"]; !ok {
		t.Error("sessions missing from export")
	}

	var csv strings.Builder
	if err := c.Snapshot().WriteCSV(&csv); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if !strings.Contains(csv.String(), "pages\nPage URL,Views\n/,13\n/blog/,6\n") {
		t.Errorf("csv = %q", csv.String())
	}
}

func TestDispatchPaging(t *testing.T) {
	fq := newFakeQuerier()
	var refs [][]string
	for i := 0; i < 12; i++ {
		refs = append(refs, []string{string(rune('a' + i)), "1"})
	}
	fq.rows["ga:fullReferrer"] = refs
	c := New(testSite, fq)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	pt, err := c.Dispatch(context.Background(), Command{Kind: NextPage, Region: Referrers, Page: 1})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if pt.State.Current != 2 || len(pt.VisibleRows()) != 2 || pt.State.HasNext() {
		t.Errorf("state = %+v visible = %d", pt.State, len(pt.VisibleRows()))
	}
	pt, _ = c.Dispatch(context.Background(), Command{Kind: NextPage, Region: Referrers, Page: 2})
	if pt.State.Current != 2 {
		t.Errorf("next on last page moved to %d", pt.State.Current)
	}
	pt, _ = c.Dispatch(context.Background(), Command{Kind: PreviousPage, Region: Referrers, Page: 0})
	if pt.State.Current != 0 || pt.State.HasPrevious() {
		t.Errorf("previous on first page: %+v", pt.State)
	}
	if _, err := c.Dispatch(context.Background(), Command{Kind: NextPage, Region: Sessions}); err == nil {
		t.Error("sessions has no pages")
	}
}

func TestDispatchRangeChangedReloads(t *testing.T) {
	fq := newFakeQuerier()
	c := New(testSite, fq)
	rng := DateRange{Start: "7daysAgo", End: "today"}
	if _, err := c.Dispatch(context.Background(), Command{Kind: RangeChanged, Range: rng}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if c.Range() != rng {
		t.Errorf("Range = %+v", c.Range())
	}
	fq.mu.Lock()
	defer fq.mu.Unlock()
	if len(fq.queries) != 3 {
		t.Fatalf("issued %d queries, want 3", len(fq.queries))
	}
	for _, q := range fq.queries {
		if q.StartDate != "7daysAgo" {
			t.Errorf("query start = %s", q.StartDate)
		}
	}
	if _, err := c.Dispatch(context.Background(), Command{Kind: RangeChanged, Range: DateRange{Start: "x"}}); err == nil {
		t.Error("expected invalid range error")
	}
}

func TestReduceResetsPagesOnRangeChange(t *testing.T) {
	v := View{
		Range: DefaultRange(),
		Pages: map[Region]report.PageState{Pages: report.Restore(12, 5, 2)},
	}
	next, reload := Reduce(v, Command{Kind: RangeChanged, Range: DateRange{Start: "7daysAgo"}})
	if !reload {
		t.Error("range change should reload")
	}
	if next.Pages[Pages].Current != 0 {
		t.Errorf("page = %d, want 0", next.Pages[Pages].Current)
	}
	if next.Range.End != "today" {
		t.Errorf("end = %q, want default", next.Range.End)
	}
	if v.Pages[Pages].Current != 2 {
		t.Error("Reduce mutated its input")
	}
}

func TestParseRegion(t *testing.T) {
	for _, r := range Regions {
		if got, err := ParseRegion(string(r)); err != nil || got != r {
			t.Errorf("ParseRegion(%q) = %q, %v", r, got, err)
		}
	}
	if _, err := ParseRegion("bots"); !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("err = %v", err)
	}
}
