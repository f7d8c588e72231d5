// Package dashboard drives the analytics dashboard: it issues the three
// report queries for a site, tracks the loading state of each region and
// keeps the latest results for paging and export.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eringen/pubdash/analytics"
	"github.com/eringen/pubdash/report"
)

// ErrUnknownRegion is returned for region names other than sessions, pages
// and referrers.
var ErrUnknownRegion = errors.New("unknown dashboard region")

// Region names one of the dashboard's independently loading areas. The name
// is also the key of its rows in the export document.
type Region string

const (
	Sessions  Region = "sessions"
	Pages     Region = "pages"
	Referrers Region = "referrers"
)

// Regions lists every region in display order.
var Regions = []Region{Sessions, Pages, Referrers}

// ParseRegion validates a region name.
func ParseRegion(s string) (Region, error) {
	for _, r := range Regions {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegion, s)
}

// Status is where a region is in its load cycle.
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "idle"
}

// RegionState is a copy of one region's state.
type RegionState struct {
	Region Region
	Status Status
	Err    error
	Range  DateRange
	Table  *report.Table // pages, referrers
	Chart  *ChartConfig  // sessions
}

// Logger is the subset of echo.Logger the controller writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

type regionState struct {
	gen   uint64
	state RegionState
}

// Controller owns one site's dashboard state. It is safe for concurrent use;
// each region is written only by the completion of its own latest query.
type Controller struct {
	site       Site
	querier    analytics.Querier
	logger     Logger
	pageSize   int
	maxResults int

	mu       sync.Mutex
	rng      DateRange
	regions  map[Region]*regionState
	snapshot Snapshot
	inflight int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets where query failures are logged.
func WithLogger(l Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPageSize sets the rows per table page.
func WithPageSize(n int) Option {
	return func(c *Controller) { c.pageSize = n }
}

// WithMaxResults caps the rows requested for the two tables.
func WithMaxResults(n int) Option {
	return func(c *Controller) { c.maxResults = n }
}

// New returns a controller for site that queries through q.
func New(site Site, q analytics.Querier, opts ...Option) *Controller {
	c := &Controller{
		site:       site,
		querier:    q,
		logger:     nopLogger{},
		pageSize:   report.DefaultPageSize,
		maxResults: 25,
		rng:        DefaultRange(),
		regions:    make(map[Region]*regionState, len(Regions)),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, r := range Regions {
		c.regions[r] = &regionState{state: RegionState{Region: r}}
	}
	return c
}

// Site returns the site this controller reports on.
func (c *Controller) Site() Site { return c.site }

// PageSize returns the rows per table page.
func (c *Controller) PageSize() int { return c.pageSize }

// Range returns the current date range.
func (c *Controller) Range() DateRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng
}

// SetRange validates and stores a new date range. Results already loaded
// stay in place until the next load, which drops them if the range changed.
func (c *Controller) SetRange(r DateRange) error {
	r, err := r.Normalize()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.rng = r
	c.mu.Unlock()
	return nil
}

// State returns a copy of region's state.
func (c *Controller) State(region Region) (RegionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, ok := c.regions[region]
	if !ok {
		return RegionState{}, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	return rs.state, nil
}

// Load issues region's query for the current range. The region shows
// Loading until this query, and not an older one, completes.
func (c *Controller) Load(ctx context.Context, region Region) (RegionState, error) {
	return c.load(ctx, region, nil)
}

// LoadRange makes r the current range and loads region for it. The range
// is stored under the same lock that starts the load, so a concurrent
// SetRange cannot make the query run for another range.
func (c *Controller) LoadRange(ctx context.Context, region Region, r DateRange) (RegionState, error) {
	r, err := r.Normalize()
	if err != nil {
		return RegionState{}, err
	}
	return c.load(ctx, region, &r)
}

func (c *Controller) load(ctx context.Context, region Region, r *DateRange) (RegionState, error) {
	c.mu.Lock()
	rs, ok := c.regions[region]
	if !ok {
		c.mu.Unlock()
		return RegionState{}, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	if r != nil {
		c.rng = *r
	}
	rng := c.rng
	rs.gen++
	gen := rs.gen
	if rs.state.Range != rng {
		// rows from another range must not be paged or exported
		c.discard(rs, region)
	}
	rs.state.Status = Loading
	rs.state.Err = nil
	rs.state.Range = rng
	c.inflight++
	c.mu.Unlock()

	q := c.query(region, rng)
	res, err := c.querier.Query(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if rs.gen != gen {
		// a newer load for this region owns the state now
		if err != nil {
			return RegionState{}, err
		}
		return rs.state, nil
	}
	if err != nil {
		c.discard(rs, region)
		rs.state.Status = Failed
		rs.state.Err = err
		c.logger.Errorf("dashboard %s: %s query failed: %v", c.site.Name, region, err)
		return rs.state, err
	}
	c.apply(rs, region, res.Rows)
	return rs.state, nil
}

// discard drops the region's rendered rows and its part of the snapshot.
// Callers hold mu.
func (c *Controller) discard(rs *regionState, region Region) {
	rs.state.Table = nil
	rs.state.Chart = nil
	switch region {
	case Sessions:
		c.snapshot.Sessions = nil
	case Pages:
		c.snapshot.Pages = nil
	case Referrers:
		c.snapshot.Referrers = nil
	}
}

// apply renders rows into the region and records them in the snapshot.
// Callers hold mu.
func (c *Controller) apply(rs *regionState, region Region, rows [][]string) {
	if rows == nil {
		rows = [][]string{}
	}
	switch region {
	case Sessions:
		c.snapshot.Sessions = rows
		chart := NewSessionsChart(rows)
		rs.state.Chart = &chart
	case Pages:
		pages := report.Aggregate(report.Rows(rows), report.PathKey)
		c.snapshot.Pages = pages
		rs.state.Table = report.NewTable(Headers[Pages], report.AggregatedCells(pages))
	case Referrers:
		c.snapshot.Referrers = rows
		rs.state.Table = report.NewTable(Headers[Referrers], rows)
	}
	rs.state.Status = Ready
}

// Refresh loads every region concurrently and waits for all of them. Each
// region settles on its own; the returned error joins the failures.
func (c *Controller) Refresh(ctx context.Context) error {
	errs := make([]error, len(Regions))
	var wg sync.WaitGroup
	for i, r := range Regions {
		wg.Add(1)
		go func(i int, r Region) {
			defer wg.Done()
			if _, err := c.Load(ctx, r); err != nil {
				errs[i] = fmt.Errorf("%s: %w", r, err)
			}
		}(i, r)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Page returns region's table positioned on page.
func (c *Controller) Page(region Region, page int) (*report.PagedTable, error) {
	st, err := c.State(region)
	if err != nil {
		return nil, err
	}
	if st.Table == nil {
		return nil, fmt.Errorf("%s is not a table region or has not loaded", region)
	}
	pt := report.Paginate(st.Table, c.pageSize)
	pt.Goto(page)
	return pt, nil
}

// Snapshot returns the most recent rows of every region.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// ExportReady reports whether there is data to export and no query in flight.
func (c *Controller) ExportReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight == 0 && !c.snapshot.Empty()
}
