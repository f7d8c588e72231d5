package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned for dates that are neither YYYY-MM-DD nor one of
// the relative forms (today, yesterday, NdaysAgo).
var ErrInvalidDate = errors.New("invalid date")

// Query is a reporting request. Field names follow the provider's parameters.
type Query struct {
	ViewID     string
	StartDate  string
	EndDate    string
	Dimensions []string
	Metrics    []string
	Sort       []string // "-" prefix sorts descending
	MaxResults int
	Filters    string // "ga:pagePath==/a;ga:hostname==b"
}

// Params encodes the query as provider request parameters.
func (q Query) Params() url.Values {
	v := url.Values{}
	v.Set("ids", q.ViewID)
	v.Set("start-date", q.StartDate)
	v.Set("end-date", q.EndDate)
	v.Set("metrics", strings.Join(q.Metrics, ","))
	if len(q.Dimensions) > 0 {
		v.Set("dimensions", strings.Join(q.Dimensions, ","))
	}
	if len(q.Sort) > 0 {
		v.Set("sort", strings.Join(q.Sort, ","))
	}
	if q.MaxResults > 0 {
		v.Set("max-results", strconv.Itoa(q.MaxResults))
	}
	if q.Filters != "" {
		v.Set("filters", q.Filters)
	}
	return v
}

// Key identifies the query for caching.
func (q Query) Key() string {
	return q.Params().Encode()
}

// Result is the rows a query returned, each a list of strings: dimensions
// first, then metrics.
type Result struct {
	ColumnHeaders []string   `json:"columnHeaders,omitempty"`
	Rows          [][]string `json:"rows"`
	TotalResults  int        `json:"totalResults"`
}

// Querier runs reporting queries.
type Querier interface {
	Query(ctx context.Context, q Query) (*Result, error)
}

// ServiceError is the error payload returned by the reporting service.
type ServiceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("analytics service error %d: %s", e.Code, e.Message)
}

func badRequest(format string, args ...any) error {
	return &ServiceError{Code: 400, Message: fmt.Sprintf(format, args...)}
}

var daysAgo = regexp.MustCompile(`^(\d+)daysAgo$`)

const dateLayout = "2006-01-02"

// ResolveDate turns a query date into a UTC midnight relative to now.
func ResolveDate(s string, now time.Time) (time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch s {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	if m := daysAgo.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return today.AddDate(0, 0, -n), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ValidDate reports whether s is an accepted query date.
func ValidDate(s string) bool {
	_, err := ResolveDate(s, time.Now())
	return err == nil
}
