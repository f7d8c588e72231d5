package dashboard

import (
	"fmt"

	"github.com/eringen/pubdash/analytics"
)

// DateRange is the reporting window, in any form the query service accepts.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DefaultRange is the last 30 days.
func DefaultRange() DateRange {
	return DateRange{Start: "30daysAgo", End: "today"}
}

// Normalize fills empty bounds from DefaultRange and validates the result.
func (r DateRange) Normalize() (DateRange, error) {
	r = r.withDefaults()
	return r, r.Validate()
}

func (r DateRange) withDefaults() DateRange {
	def := DefaultRange()
	if r.Start == "" {
		r.Start = def.Start
	}
	if r.End == "" {
		r.End = def.End
	}
	return r
}

// Validate checks both ends of the range.
func (r DateRange) Validate() error {
	if !analytics.ValidDate(r.Start) {
		return fmt.Errorf("start date: %w: %q", analytics.ErrInvalidDate, r.Start)
	}
	if !analytics.ValidDate(r.End) {
		return fmt.Errorf("end date: %w: %q", analytics.ErrInvalidDate, r.End)
	}
	return nil
}

// Headers are the table column titles per region.
var Headers = map[Region][]string{
	Sessions:  {"Date", "Day", "Sessions"},
	Pages:     {"Page URL", "Views"},
	Referrers: {"Source", "Views"},
}

// query builds the report query behind region.
func (c *Controller) query(region Region, rng DateRange) analytics.Query {
	q := analytics.Query{
		ViewID:    c.site.ViewID,
		StartDate: rng.Start,
		EndDate:   rng.End,
	}
	switch region {
	case Sessions:
		q.Dimensions = []string{"ga:date", "ga:nthDay"}
		q.Metrics = []string{"ga:sessions"}
	case Pages:
		// one row per hostname and path; merged by path afterwards
		q.Dimensions = []string{"ga:hostname", "ga:pagePath"}
		q.Metrics = []string{"ga:pageviews"}
		q.Sort = []string{"-ga:pageviews"}
		q.MaxResults = c.maxResults
	case Referrers:
		q.Dimensions = []string{"ga:fullReferrer"}
		q.Metrics = []string{"ga:pageviews"}
		q.Sort = []string{"-ga:pageviews"}
		q.MaxResults = c.maxResults
	}
	return q
}

// Query returns the query region would issue for the current range.
func (c *Controller) Query(region Region) (analytics.Query, error) {
	if _, err := ParseRegion(string(region)); err != nil {
		return analytics.Query{}, err
	}
	return c.query(region, c.Range()), nil
}
